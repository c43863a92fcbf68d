package protocol

import (
	"encoding/json"
	"reflect"
	"testing"
)

const smokeProtocolJSON = `{
  "version":"1.0",
  "metadata":{"description":"smoke","complexity":"simple","uses_vision":false},
  "actions":[{"action":"press_key","params":{"key":"enter"},"wait_after_ms":50}]
}`

func TestDecodeJSON_Smoke(t *testing.T) {
	p, err := DecodeJSON([]byte(smokeProtocolJSON))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if p.Version != "1.0" {
		t.Fatalf("version = %q, want 1.0", p.Version)
	}
	if p.Metadata.Description != "smoke" {
		t.Fatalf("description = %q", p.Metadata.Description)
	}
	if len(p.Actions) != 1 || p.Actions[0].Name != "press_key" {
		t.Fatalf("actions = %+v", p.Actions)
	}
	if p.Actions[0].WaitAfterMs != 50 {
		t.Fatalf("wait_after_ms = %d, want 50", p.Actions[0].WaitAfterMs)
	}
}

func TestRoundTrip(t *testing.T) {
	p, err := DecodeJSON([]byte(smokeProtocolJSON))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	p2, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON(round-trip): %v", err)
	}
	if !reflect.DeepEqual(p, p2) {
		t.Fatalf("round-trip mismatch:\n%+v\n%+v", p, p2)
	}
}

func TestRoundTrip_WithMacros(t *testing.T) {
	raw := `{
	  "version":"1.0",
	  "metadata":{"description":"macro demo","complexity":"medium","uses_vision":false},
	  "macros":{"search":[{"action":"type","params":{"text":"{{query}}"}},{"action":"press_key","params":{"key":"enter"}}]},
	  "actions":[{"action":"macro","params":{"name":"search","vars":{"query":"hello"}}}]
	}`
	p, err := DecodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(p.Macros) != 1 {
		t.Fatalf("macros = %+v", p.Macros)
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if _, ok := back["macros"].(map[string]any)["search"]; !ok {
		t.Fatalf("search macro missing from re-encoded JSON: %s", data)
	}
}

func TestAction_IsMacroCall(t *testing.T) {
	a := Action{Name: "macro", Params: map[string]any{"name": "search"}}
	if !a.IsMacroCall() {
		t.Fatal("expected IsMacroCall true")
	}
	inv, err := a.MacroParams()
	if err != nil {
		t.Fatalf("MacroParams: %v", err)
	}
	if inv.Name != "search" {
		t.Fatalf("inv.Name = %q", inv.Name)
	}
}

func TestAction_MacroParams_MissingName(t *testing.T) {
	a := Action{Name: "macro", Params: map[string]any{}}
	if _, err := a.MacroParams(); err == nil {
		t.Fatal("expected error for missing params.name")
	}
}
