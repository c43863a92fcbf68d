package parser

import (
	"testing"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/protocol"
)

// fakeRegistry is a minimal action.Registry test double that knows a
// fixed set of action names with declared param specs.
type fakeRegistry struct {
	entries map[string]action.Entry
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]action.Entry{
		"press_key": {Name: "press_key", Category: action.CategoryKeyboard, RequiredParams: []string{"key"}},
		"type":      {Name: "type", Category: action.CategoryKeyboard, RequiredParams: []string{"text"}},
		"mouse_move": {Name: "mouse_move", Category: action.CategoryMouse, RequiredParams: []string{"x", "y"}},
	}}
}

func (f *fakeRegistry) Register(e action.Entry) error { f.entries[e.Name] = e; return nil }
func (f *fakeRegistry) Lookup(name string) (action.Entry, bool) {
	e, ok := f.entries[name]
	return e, ok
}
func (f *fakeRegistry) ListByCategory(cat action.Category) []action.Entry { return nil }
func (f *fakeRegistry) IsEnabled(name string, cat action.Category) bool   { return true }
func (f *fakeRegistry) Inject(action.Driver, action.Broker, action.MouseController) {}

func mustHaveError(t *testing.T, res *Result, kind apperr.Kind) {
	t.Helper()
	for _, e := range res.Errors() {
		if e.Kind == kind {
			return
		}
	}
	t.Fatalf("expected error kind %s, got issues: %v", kind, res.Issues)
}

func TestValidate_Smoke(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "smoke"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{"key": "enter"}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	if !res.OK() {
		t.Fatalf("expected OK, got errors: %v", res.Errors())
	}
}

func TestValidate_VersionMismatch(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "2.0",
		Metadata: protocol.Metadata{Description: "bad version"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{"key": "enter"}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.VersionMismatch)
}

func TestValidate_EmptyActions(t *testing.T) {
	p := &protocol.Protocol{Version: "1.0", Metadata: protocol.Metadata{Description: "x"}}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.EmptyActions)
}

func TestValidate_UnknownAction(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Actions:  []protocol.Action{{Name: "nonexistent", Params: map[string]any{}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.UnknownAction)
}

func TestValidate_UnresolvedMacro(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Macros:   map[string]protocol.Macro{},
		Actions:  []protocol.Action{{Name: "macro", Params: map[string]any{"name": "ghost"}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.UnresolvedMacro)
}

func TestValidate_CyclicMacro(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Macros: map[string]protocol.Macro{
			"a": {Name: "a", Actions: []protocol.Action{{Name: "macro", Params: map[string]any{"name": "b"}}}},
			"b": {Name: "b", Actions: []protocol.Action{{Name: "macro", Params: map[string]any{"name": "a"}}}},
		},
		Actions: []protocol.Action{{Name: "macro", Params: map[string]any{"name": "a"}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.CyclicMacro)
}

func TestValidate_BadDelay(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{"key": "enter"}, WaitAfterMs: -1}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.BadDelay)
}

func TestValidate_ParamMissing_WarningInRelaxedMode(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	if !res.OK() {
		t.Fatalf("relaxed mode should accept with warnings, got errors: %v", res.Errors())
	}
	if len(res.Warnings()) == 0 {
		t.Fatal("expected a PARAM_MISSING warning")
	}
}

func TestValidate_ParamMissing_ErrorInStrictMode(t *testing.T) {
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "x"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{}}},
	}
	cfg := DefaultConfig()
	cfg.StrictMode = true
	res := Validate(p, newFakeRegistry(), cfg)
	mustHaveError(t, res, apperr.ParamMissing)
}

func TestValidate_MacroDepthExceeded(t *testing.T) {
	// A straight-line chain of 6 macros, deeper than the default max depth of 5.
	macros := map[string]protocol.Macro{}
	for i := 0; i < 6; i++ {
		name := string(rune('a' + i))
		next := string(rune('a' + i + 1))
		var acts []protocol.Action
		if i < 5 {
			acts = []protocol.Action{{Name: "macro", Params: map[string]any{"name": next}}}
		} else {
			acts = []protocol.Action{{Name: "press_key", Params: map[string]any{"key": "enter"}}}
		}
		macros[name] = protocol.Macro{Name: name, Actions: acts}
	}
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "deep"},
		Macros:   macros,
		Actions:  []protocol.Action{{Name: "macro", Params: map[string]any{"name": "a"}}},
	}
	res := Validate(p, newFakeRegistry(), DefaultConfig())
	mustHaveError(t, res, apperr.CyclicMacro)
}
