package substitute

import (
	"reflect"
	"testing"

	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

func lookupFrom(vars map[string]any) (VarLookup, AvailableKeys) {
	lookup := func(key string) (any, bool) {
		v, ok := vars[key]
		return v, ok
	}
	keys := func() []string {
		out := make([]string, 0, len(vars))
		for k := range vars {
			out = append(out, k)
		}
		return out
	}
	return lookup, keys
}

func TestParams_WholeTokenPreservesType(t *testing.T) {
	lookup, keys := lookupFrom(map[string]any{"verified_x": 330, "verified_y": 450})
	in := map[string]any{"x": "{{verified_x}}", "y": "{{verified_y}}"}
	out, err := Params(in, lookup, keys)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if x, ok := out["x"].(int); !ok || x != 330 {
		t.Fatalf("x = %#v, want int 330", out["x"])
	}
	if y, ok := out["y"].(int); !ok || y != 450 {
		t.Fatalf("y = %#v, want int 450", out["y"])
	}
}

func TestParams_InterpolatedStringRendersAsText(t *testing.T) {
	lookup, keys := lookupFrom(map[string]any{"name": "world"})
	in := map[string]any{"text": "hello {{name}}!"}
	out, err := Params(in, lookup, keys)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if out["text"] != "hello world!" {
		t.Fatalf("text = %q", out["text"])
	}
}

func TestParams_MissingVariableFails(t *testing.T) {
	lookup, keys := lookupFrom(map[string]any{})
	in := map[string]any{"x": "{{verified_x}}"}
	_, err := Params(in, lookup, keys)
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !apperr.Is(err, apperr.VariableMissing) {
		t.Fatalf("err kind = %v, want VARIABLE_MISSING", err)
	}
}

func TestParams_NestedStructures(t *testing.T) {
	lookup, keys := lookupFrom(map[string]any{"q": "hello"})
	in := map[string]any{
		"list": []any{"{{q}}", "literal"},
		"obj":  map[string]any{"inner": "{{q}} there"},
	}
	out, err := Params(in, lookup, keys)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	wantList := []any{"hello", "literal"}
	if !reflect.DeepEqual(out["list"], wantList) {
		t.Fatalf("list = %#v", out["list"])
	}
	obj := out["obj"].(map[string]any)
	if obj["inner"] != "hello there" {
		t.Fatalf("inner = %q", obj["inner"])
	}
}

func TestParams_NoTemplatePassesThrough(t *testing.T) {
	lookup, keys := lookupFrom(map[string]any{})
	in := map[string]any{"key": "enter", "count": 3, "flag": true}
	out, err := Params(in, lookup, keys)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("out = %#v, want unchanged %#v", out, in)
	}
}
