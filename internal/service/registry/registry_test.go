package registry

import (
	"context"
	"testing"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func noopHandler(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	return &action.Result{}, nil
}

func TestRegister_DuplicateNameErrors(t *testing.T) {
	r := New(Config{})
	e := action.Entry{Name: "press_key", Category: action.CategoryKeyboard, Handler: noopHandler}
	if err := r.Register(e); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(e); err == nil {
		t.Fatal("expected error re-registering the same action name")
	}
}

func TestLookup_FoundAndMissing(t *testing.T) {
	r := New(Config{})
	_ = r.Register(action.Entry{Name: "type", Category: action.CategoryKeyboard, Handler: noopHandler})

	if _, ok := r.Lookup("type"); !ok {
		t.Fatal("expected type to be registered")
	}
	if _, ok := r.Lookup("nonexistent"); ok {
		t.Fatal("expected nonexistent to be absent")
	}
}

func TestListByCategory(t *testing.T) {
	r := New(Config{})
	_ = r.Register(action.Entry{Name: "press_key", Category: action.CategoryKeyboard, Handler: noopHandler})
	_ = r.Register(action.Entry{Name: "type", Category: action.CategoryKeyboard, Handler: noopHandler})
	_ = r.Register(action.Entry{Name: "mouse_move", Category: action.CategoryMouse, Handler: noopHandler})

	kb := r.ListByCategory(action.CategoryKeyboard)
	if len(kb) != 2 {
		t.Fatalf("len(keyboard) = %d, want 2", len(kb))
	}
	mouse := r.ListByCategory(action.CategoryMouse)
	if len(mouse) != 1 {
		t.Fatalf("len(mouse) = %d, want 1", len(mouse))
	}
}

func TestIsEnabled_DisabledActionWins(t *testing.T) {
	r := New(Config{DisabledActions: []string{"press_key"}})
	if r.IsEnabled("press_key", action.CategoryKeyboard) {
		t.Fatal("press_key is explicitly disabled")
	}
	if !r.IsEnabled("type", action.CategoryKeyboard) {
		t.Fatal("type should remain enabled")
	}
}

func TestIsEnabled_EmptyCategoryListMeansAllEnabled(t *testing.T) {
	r := New(Config{})
	if !r.IsEnabled("anything", action.CategoryVision) {
		t.Fatal("empty EnabledCategories should enable every category")
	}
}

func TestIsEnabled_CategoryAllowlist(t *testing.T) {
	r := New(Config{EnabledCategories: []action.Category{action.CategoryKeyboard}})
	if !r.IsEnabled("press_key", action.CategoryKeyboard) {
		t.Fatal("keyboard is in the allowlist")
	}
	if r.IsEnabled("mouse_move", action.CategoryMouse) {
		t.Fatal("mouse is not in the allowlist")
	}
}

func TestInject_PopulatesDeps(t *testing.T) {
	r := New(Config{})
	r.Inject(nil, nil, nil)
	deps := r.Deps()
	if deps.Driver != nil || deps.Broker != nil || deps.MouseController != nil {
		t.Fatalf("expected nil collaborators to round-trip as nil, got %+v", deps)
	}
}
