// Package registry implements the action registry: name -> Entry table,
// category-based enable/disable gating, and one-time collaborator
// injection (spec §4.3).
package registry

import (
	"fmt"
	"sync"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

// Config gates which categories/actions are enabled (spec §6.4 Action
// library: enabled_categories, disabled_actions).
type Config struct {
	EnabledCategories []action.Category // empty = all categories enabled
	DisabledActions   []string
}

// Registry is the in-memory action.Registry implementation, modeled on
// the teacher's domain/tool.InMemoryRegistry.
// 内存版动作注册表，按分类启用/禁用，依赖注入一次性完成。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]action.Entry
	cfg     Config

	driver Driver
	broker Broker
	mouse  MouseCtl
}

type (
	Driver   = action.Driver
	Broker   = action.Broker
	MouseCtl = action.MouseController
)

// New creates an empty registry gated by cfg.
func New(cfg Config) *Registry {
	return &Registry{
		entries: make(map[string]action.Entry),
		cfg:     cfg,
	}
}

// Register adds an Entry. Re-registering the same name is an error.
func (r *Registry) Register(e action.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("action %q already registered", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// Lookup returns the Entry for name.
func (r *Registry) Lookup(name string) (action.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// ListByCategory returns every Entry tagged with cat.
func (r *Registry) ListByCategory(cat action.Category) []action.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []action.Entry
	for _, e := range r.entries {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// IsEnabled consults the disabled-categories / disabled-actions configuration.
func (r *Registry) IsEnabled(name string, cat action.Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, disabled := range r.cfg.DisabledActions {
		if disabled == name {
			return false
		}
	}
	if len(r.cfg.EnabledCategories) == 0 {
		return true
	}
	for _, c := range r.cfg.EnabledCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// Inject wires the shared collaborators into the registry once at engine
// startup. Handlers that need a collaborator that was never injected fail
// VALIDATION_FAILURE at invocation (see Deps below).
func (r *Registry) Inject(driver Driver, broker Broker, mouse MouseCtl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.driver = driver
	r.broker = broker
	r.mouse = mouse
}

// Deps returns the Deps bundle handlers receive, reflecting whatever was
// injected (fields may be nil if Inject was never called for them).
func (r *Registry) Deps() action.Deps {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return action.Deps{Driver: r.driver, Broker: r.broker, MouseController: r.mouse}
}
