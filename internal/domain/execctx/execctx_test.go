package execctx

import "testing"

func TestNew_SeedsVariablesAsIndependentCopy(t *testing.T) {
	seed := map[string]any{"a": 1}
	c := New(seed)
	seed["a"] = 2 // mutating the caller's map must not affect the context
	if v, _ := c.Get("a"); v != 1 {
		t.Fatalf("a = %v, want 1 (seed should be copied)", v)
	}
}

func TestGetSet(t *testing.T) {
	c := New(nil)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected missing key to be absent")
	}
	c.Set("x", 42)
	v, ok := c.Get("x")
	if !ok || v != 42 {
		t.Fatalf("x = %v, ok=%v", v, ok)
	}
}

func TestSetAll_Merges(t *testing.T) {
	c := New(map[string]any{"a": 1})
	c.SetAll(map[string]any{"b": 2, "c": 3})
	for k, want := range map[string]any{"a": 1, "b": 2, "c": 3} {
		if v, ok := c.Get(k); !ok || v != want {
			t.Fatalf("%s = %v, want %v", k, v, want)
		}
	}
}

func TestPushMacroScope_ShadowsAndRestores(t *testing.T) {
	c := New(map[string]any{"query": "outer"})
	restore := c.PushMacroScope(map[string]any{"query": "inner", "extra": "only-in-macro"})

	if v, _ := c.Get("query"); v != "inner" {
		t.Fatalf("query = %v, want shadowed inner", v)
	}
	if v, _ := c.Get("extra"); v != "only-in-macro" {
		t.Fatalf("extra = %v, want only-in-macro", v)
	}

	restore()

	if v, _ := c.Get("query"); v != "outer" {
		t.Fatalf("query after restore = %v, want outer", v)
	}
	if _, ok := c.Get("extra"); ok {
		t.Fatal("extra should be removed after restore, it never existed in the parent")
	}
}

func TestPushMacroScope_WritesInsideMacroPropagateToParent(t *testing.T) {
	c := New(nil)
	restore := c.PushMacroScope(map[string]any{"scoped": "a"})
	// A write from "inside" the macro body, e.g. a handler output, uses the
	// same flat map and so is visible after restore unless it's a key the
	// scope itself introduced.
	c.Set("carried_out", "value")
	restore()
	if v, ok := c.Get("carried_out"); !ok || v != "value" {
		t.Fatalf("carried_out = %v, ok=%v, want value/true (propagates past restore)", v, ok)
	}
}

func TestPushMacroScope_EmptyVarsIsNoop(t *testing.T) {
	c := New(map[string]any{"a": 1})
	restore := c.PushMacroScope(nil)
	restore()
	if v, _ := c.Get("a"); v != 1 {
		t.Fatalf("a = %v, want unchanged 1", v)
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	c := New(map[string]any{"a": 1})
	snap := c.Snapshot()
	snap["a"] = 999
	if v, _ := c.Get("a"); v != 1 {
		t.Fatalf("a = %v, want 1 (snapshot mutation must not affect context)", v)
	}
}

func TestPauseResume(t *testing.T) {
	c := New(nil)
	if c.Paused() {
		t.Fatal("expected not paused initially")
	}
	c.Pause()
	if !c.Paused() {
		t.Fatal("expected paused after Pause()")
	}
	c.Resume()
	if c.Paused() {
		t.Fatal("expected not paused after Resume()")
	}
}

func TestRequestStop_Idempotent(t *testing.T) {
	c := New(nil)
	if c.StopRequested() {
		t.Fatal("expected not stopped initially")
	}
	c.RequestStop()
	c.RequestStop()
	if !c.StopRequested() {
		t.Fatal("expected stopped after RequestStop()")
	}
}
