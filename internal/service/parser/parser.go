// Package parser implements the protocol parser & validator (spec §4.1):
// it accepts raw JSON or an already-decoded document, runs the
// fail-fast validation order from the table in §4.1, and produces either
// a validated *protocol.Protocol or a structured set of ValidationErrors.
package parser

import (
	"fmt"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/protocol"
)

// DefaultMaxMacroDepth bounds macro expansion tree depth (spec §3).
const DefaultMaxMacroDepth = 5

// Config controls strict-vs-relaxed validation mode (spec §4.1).
// 严格模式下所有警告升级为错误。
type Config struct {
	StrictMode    bool // promotes every warning to an error
	MaxMacroDepth int
}

// DefaultConfig returns relaxed-mode defaults.
func DefaultConfig() Config {
	return Config{StrictMode: false, MaxMacroDepth: DefaultMaxMacroDepth}
}

// Issue is one validation finding.
type Issue struct {
	Kind    apperr.Kind
	Message string
	Warning bool
}

func (i Issue) String() string {
	sev := "error"
	if i.Warning {
		sev = "warning"
	}
	return fmt.Sprintf("[%s] %s: %s", sev, i.Kind, i.Message)
}

// Result is the outcome of Parse: either a validated Protocol, or a list
// of issues (at least one of which is an error) that prevented acceptance.
type Result struct {
	Protocol *protocol.Protocol
	Issues   []Issue
}

// Errors returns only the error-severity issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if !is.Warning {
			out = append(out, is)
		}
	}
	return out
}

// Warnings returns only the warning-severity issues.
func (r *Result) Warnings() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Warning {
			out = append(out, is)
		}
	}
	return out
}

// OK reports whether the protocol was accepted (no error-severity issues).
func (r *Result) OK() bool {
	return len(r.Errors()) == 0
}

// ParseJSON decodes raw and validates it.
func ParseJSON(raw []byte, registry action.Registry, cfg Config) *Result {
	p, err := protocol.DecodeJSON(raw)
	if err != nil {
		return &Result{Issues: []Issue{{Kind: apperr.MalformedAction, Message: err.Error()}}}
	}
	return Validate(p, registry, cfg)
}

// Validate runs the fail-fast validation order from spec §4.1 against an
// already-decoded Protocol. Errors are collected (not fail-fast in the
// sense of stopping at the first one) so the caller sees every problem,
// but severity promotion and whether the protocol is ultimately accepted
// follow the table exactly.
func Validate(p *protocol.Protocol, registry action.Registry, cfg Config) *Result {
	if cfg.MaxMacroDepth <= 0 {
		cfg.MaxMacroDepth = DefaultMaxMacroDepth
	}
	res := &Result{Protocol: p}
	add := func(kind apperr.Kind, warning bool, format string, args ...any) {
		if warning && cfg.StrictMode {
			warning = false
		}
		res.Issues = append(res.Issues, Issue{Kind: kind, Message: fmt.Sprintf(format, args...), Warning: warning})
	}

	if p.Version != protocol.SupportedVersion {
		add(apperr.VersionMismatch, false, "version %q does not match supported %q", p.Version, protocol.SupportedVersion)
	}
	if p.Metadata.Description == "" {
		add(apperr.MetadataMissing, false, "metadata.description must be a non-empty string")
	}
	if len(p.Actions) == 0 {
		add(apperr.EmptyActions, false, "actions must be a non-empty array")
	}

	validateActionList(p.Actions, p, registry, cfg, add, 0, make(map[string]bool))

	return res
}

type addFunc func(kind apperr.Kind, warning bool, format string, args ...any)

func validateActionList(actions []protocol.Action, p *protocol.Protocol, registry action.Registry, cfg Config, add addFunc, depth int, visiting map[string]bool) {
	for i := range actions {
		validateAction(&actions[i], p, registry, cfg, add, depth, visiting)
	}
}

func validateAction(a *protocol.Action, p *protocol.Protocol, registry action.Registry, cfg Config, add addFunc, depth int, visiting map[string]bool) {
	if a.Name == "" || a.Params == nil {
		add(apperr.MalformedAction, false, "action missing name or params object")
		return
	}
	if a.WaitAfterMs < 0 {
		add(apperr.BadDelay, false, "action %q has negative wait_after_ms=%d", a.Name, a.WaitAfterMs)
	}

	if a.IsMacroCall() {
		validateMacroCall(a, p, registry, cfg, add, depth, visiting)
		return
	}

	entry, known := registry.Lookup(a.Name)
	if !known {
		add(apperr.UnknownAction, false, "unknown action %q", a.Name)
		return
	}

	for _, req := range entry.RequiredParams {
		if _, ok := a.Params[req]; !ok {
			add(apperr.ParamMissing, true, "action %q missing required param %q", a.Name, req)
		}
	}
	allowed := make(map[string]bool, len(entry.RequiredParams)+len(entry.OptionalParams))
	for _, k := range entry.RequiredParams {
		allowed[k] = true
	}
	for _, k := range entry.OptionalParams {
		allowed[k] = true
	}
	if len(allowed) > 0 {
		for k := range a.Params {
			if !allowed[k] {
				add(apperr.ParamUnknown, true, "action %q has unrecognized param %q", a.Name, k)
			}
		}
	}
}

func validateMacroCall(a *protocol.Action, p *protocol.Protocol, registry action.Registry, cfg Config, add addFunc, depth int, visiting map[string]bool) {
	inv, err := a.MacroParams()
	if err != nil {
		add(apperr.UnresolvedMacro, false, "macro call missing params.name")
		return
	}
	macro, ok := p.Macros[inv.Name]
	if !ok {
		add(apperr.UnresolvedMacro, false, "macro %q is not defined", inv.Name)
		return
	}
	if depth >= cfg.MaxMacroDepth {
		add(apperr.CyclicMacro, false, "macro expansion exceeds max depth %d at %q", cfg.MaxMacroDepth, inv.Name)
		return
	}
	if visiting[inv.Name] {
		add(apperr.CyclicMacro, false, "macro %q participates in a cycle", inv.Name)
		return
	}
	visiting[inv.Name] = true
	validateActionList(macro.Actions, p, registry, cfg, add, depth+1, visiting)
	delete(visiting, inv.Name)
}
