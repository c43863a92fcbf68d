package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/protocol"
)

// callRecorder is a minimal action.Registry that records every invocation,
// standing in for the real handler library in these sequencer-focused tests.
type callRecorder struct {
	mu      sync.Mutex
	entries map[string]action.Entry
	calls   []call
}

type call struct {
	name   string
	params map[string]any
}

func newRecorder(entries map[string]action.Entry) *callRecorder {
	return &callRecorder{entries: entries}
}

func (r *callRecorder) Register(e action.Entry) error { r.entries[e.Name] = e; return nil }
func (r *callRecorder) Lookup(name string) (action.Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}
func (r *callRecorder) ListByCategory(action.Category) []action.Entry { return nil }
func (r *callRecorder) IsEnabled(string, action.Category) bool        { return true }
func (r *callRecorder) Inject(action.Driver, action.Broker, action.MouseController) {}

func (r *callRecorder) record(name string, params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name: name, params: params})
}

func (r *callRecorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}

func pressKeyEntry(r *callRecorder) action.Entry {
	return action.Entry{
		Name:     "press_key",
		Category: action.CategoryKeyboard,
		Handler: func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
			r.record("press_key", params)
			return &action.Result{}, nil
		},
	}
}

func typeEntry(r *callRecorder) action.Entry {
	return action.Entry{
		Name:     "type",
		Category: action.CategoryKeyboard,
		Handler: func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
			r.record("type", params)
			return &action.Result{}, nil
		},
	}
}

func mouseMoveEntry(r *callRecorder) action.Entry {
	return action.Entry{
		Name:     "mouse_move",
		Category: action.CategoryMouse,
		Handler: func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
			r.record("mouse_move", params)
			return &action.Result{}, nil
		},
	}
}

func verifyScreenEntry(r *callRecorder) action.Entry {
	return action.Entry{
		Name:     "verify_screen",
		Category: action.CategoryVision,
		Handler: func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
			r.record("verify_screen", params)
			return &action.Result{Outputs: map[string]any{"verified_x": 330, "verified_y": 450}}, nil
		},
	}
}

func TestExecute_Smoke(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["press_key"] = pressKeyEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "smoke"},
		Actions:  []protocol.Action{{Name: "press_key", Params: map[string]any{"key": "enter"}, WaitAfterMs: 10}},
	}

	ex := New(rec, nil, nil, DefaultConfig())
	res := ex.Execute(context.Background(), p, nil)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, want success; error=%s", res.Status, res.Error)
	}
	if res.ActionsCompleted != 1 || res.ActionsTotal != 1 {
		t.Fatalf("completed/total = %d/%d, want 1/1", res.ActionsCompleted, res.ActionsTotal)
	}
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].name != "press_key" || calls[0].params["key"] != "enter" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestExecute_MacroWithVariables(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["type"] = typeEntry(rec)
	rec.entries["press_key"] = pressKeyEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "macro demo"},
		Macros: map[string]protocol.Macro{
			"search": {Name: "search", Actions: []protocol.Action{
				{Name: "type", Params: map[string]any{"text": "{{query}}"}},
				{Name: "press_key", Params: map[string]any{"key": "enter"}},
			}},
		},
		Actions: []protocol.Action{
			{Name: "macro", Params: map[string]any{"name": "search", "vars": map[string]any{"query": "hello"}}},
		},
	}

	ex := New(rec, nil, nil, DefaultConfig())
	res := ex.Execute(context.Background(), p, nil)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, error=%s", res.Status, res.Error)
	}
	if res.ActionsCompleted != 1 {
		t.Fatalf("actions_completed = %d, want 1 (macro counted once at top level)", res.ActionsCompleted)
	}
	calls := rec.Calls()
	if len(calls) != 2 || calls[0].name != "type" || calls[0].params["text"] != "hello" || calls[1].name != "press_key" {
		t.Fatalf("unexpected macro-expanded calls: %+v", calls)
	}
}

func TestExecute_VariableTypePreservation(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["verify_screen"] = verifyScreenEntry(rec)
	rec.entries["mouse_move"] = mouseMoveEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "verify then move"},
		Actions: []protocol.Action{
			{Name: "verify_screen", Params: map[string]any{}},
			{Name: "mouse_move", Params: map[string]any{"x": "{{verified_x}}", "y": "{{verified_y}}"}},
		},
	}

	ex := New(rec, nil, nil, DefaultConfig())
	res := ex.Execute(context.Background(), p, nil)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, error=%s", res.Status, res.Error)
	}
	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	x, ok := calls[1].params["x"].(int)
	if !ok || x != 330 {
		t.Fatalf("x = %#v, want int 330", calls[1].params["x"])
	}
	y, ok := calls[1].params["y"].(int)
	if !ok || y != 450 {
		t.Fatalf("y = %#v, want int 450", calls[1].params["y"])
	}
}

func TestExecute_MissingVariableFails(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["mouse_move"] = mouseMoveEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "missing var"},
		Actions: []protocol.Action{
			{Name: "mouse_move", Params: map[string]any{"x": "{{verified_x}}", "y": "{{verified_y}}"}},
		},
	}

	ex := New(rec, nil, nil, DefaultConfig())
	res := ex.Execute(context.Background(), p, nil)

	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ErrorDetails == nil || res.ErrorDetails.Kind != apperr.VariableMissing {
		t.Fatalf("error_details = %+v, want kind VARIABLE_MISSING", res.ErrorDetails)
	}
	if res.ErrorDetails.ActionIndex != 0 {
		t.Fatalf("action_index = %d, want 0", res.ErrorDetails.ActionIndex)
	}
}

func TestExecute_DryRun_SkipsHandlerButCompletes(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["press_key"] = pressKeyEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "dry run"},
		Actions: []protocol.Action{
			{Name: "press_key", Params: map[string]any{"key": "enter"}},
			{Name: "press_key", Params: map[string]any{"key": "tab"}},
		},
	}

	cfg := DefaultConfig()
	cfg.DryRun = true
	ex := New(rec, nil, nil, cfg)
	res := ex.Execute(context.Background(), p, nil)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, error=%s", res.Status, res.Error)
	}
	if res.ActionsCompleted != len(p.Actions) {
		t.Fatalf("actions_completed = %d, want %d", res.ActionsCompleted, len(p.Actions))
	}
	if len(rec.Calls()) != 0 {
		t.Fatalf("dry_run must not invoke handlers, got calls: %+v", rec.Calls())
	}
}

func TestExecute_WaitAfterMsHonored(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	rec.entries["press_key"] = pressKeyEntry(rec)

	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "delay"},
		Actions: []protocol.Action{
			{Name: "press_key", Params: map[string]any{"key": "a"}, WaitAfterMs: 80},
			{Name: "press_key", Params: map[string]any{"key": "b"}},
		},
	}

	ex := New(rec, nil, nil, DefaultConfig())
	start := time.Now()
	res := ex.Execute(context.Background(), p, nil)
	elapsed := time.Since(start)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %s, error=%s", res.Status, res.Error)
	}
	if elapsed < 70*time.Millisecond {
		t.Fatalf("elapsed = %s, want at least ~80ms wait honored", elapsed)
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	ex := New(rec, nil, nil, DefaultConfig())
	// Stop before any execution started is a documented no-op; calling
	// it twice must not panic either way.
	ex.Stop()
	ex.Stop()
}

func TestExecute_UnknownActionFailsWithDetails(t *testing.T) {
	rec := newRecorder(map[string]action.Entry{})
	p := &protocol.Protocol{
		Version:  "1.0",
		Metadata: protocol.Metadata{Description: "unknown"},
		Actions:  []protocol.Action{{Name: "not_registered", Params: map[string]any{}}},
	}
	ex := New(rec, nil, nil, DefaultConfig())
	res := ex.Execute(context.Background(), p, nil)
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ErrorDetails.Kind != apperr.UnknownAction {
		t.Fatalf("kind = %s, want UNKNOWN_ACTION", res.ErrorDetails.Kind)
	}
}
