// Package execctx holds the mutable per-protocol execution state: the
// variable map, macro scope chain, and pause/stop/cancellation flags
// (spec §3 ExecutionContext, §9 macro-scope Open Question).
package execctx

import (
	"sync"
	"time"
)

// Context is the mutable state threaded through one protocol execution.
// Thread-safe: the executor's control flags (paused, stopRequested) are
// written from a signal handler / control goroutine while the main
// execution loop reads them cooperatively.
// 单次协议执行的可变状态，变量表 + 暂停/停止标志，线程安全。
type Context struct {
	mu sync.RWMutex

	variables map[string]any // 扁平变量表，宏作用域直接覆盖/恢复其中的键

	ActionIndex int
	StartedAt   time.Time

	paused        bool
	stopRequested bool
}

// New creates a Context seeded with the caller-supplied initial variables.
// A nil seed is treated as an empty map.
func New(seed map[string]any) *Context {
	vars := make(map[string]any, len(seed))
	for k, v := range seed {
		vars[k] = v
	}
	return &Context{
		variables: vars,
		StartedAt: time.Now(),
	}
}

// Get reads a variable. The single flat variable map is shared by the
// parent and any macro scopes pushed onto it (spec §9: macro vars overlay
// the parent, writes from inside the macro propagate out).
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[key]
	return v, ok
}

// Set writes a variable, visible to the parent and any nested scope.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

// SetAll merges outputs (e.g. a handler's declared output keys) into the
// variable map.
func (c *Context) SetAll(values map[string]any) {
	if len(values) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.variables[k] = v
	}
}

// Keys returns the currently-known variable names, for VARIABLE_MISSING
// diagnostics ("expected vs. available keys").
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.variables))
	for k := range c.variables {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a shallow copy of the variable map, for ExecutionResult.context_snapshot.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// PushMacroScope overlays vars on top of the current variable map (child
// wins on conflict) and returns a restore function that removes only the
// keys PushMacroScope itself added/overwrote, restoring any prior value
// the parent had for a shadowed key. This implements "child scope shadows
// parent; writes from inside the macro propagate to the parent" using a
// single flat map, per spec §9.
func (c *Context) PushMacroScope(vars map[string]any) (restore func()) {
	if len(vars) == 0 {
		return func() {}
	}
	c.mu.Lock()
	prior := make(map[string]any, len(vars))
	hadPrior := make(map[string]bool, len(vars))
	for k, v := range vars {
		if old, ok := c.variables[k]; ok {
			prior[k] = old
			hadPrior[k] = true
		}
		c.variables[k] = v
	}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for k := range vars {
			if hadPrior[k] {
				c.variables[k] = prior[k]
			} else {
				delete(c.variables, k)
			}
		}
	}
}

// --- control flags ---

func (c *Context) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Context) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *Context) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// RequestStop is idempotent.
func (c *Context) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRequested = true
}

func (c *Context) StopRequested() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopRequested
}
