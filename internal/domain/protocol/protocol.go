// Package protocol defines the immutable in-memory representation of a
// desktop-automation Protocol: the declarative JSON instruction document
// the planner hands to the executor (spec §3, §6.1).
package protocol

import "fmt"

// SupportedVersion is the only protocol schema version this repo accepts.
const SupportedVersion = "1.0"

// Complexity classifies a protocol's metadata.complexity field.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Metadata is the protocol's descriptive envelope.
// ID doubles as the broker correlation key once the planner stamps it at
// submission time; never derive it from Description.
type Metadata struct {
	Description        string         `json:"description"`
	Complexity         Complexity     `json:"complexity"`
	UsesVision         bool           `json:"uses_vision"`
	ID                 string         `json:"id,omitempty"`
	EstimatedDurationMs int64         `json:"estimated_duration_ms,omitempty"`
	Tags               []string       `json:"tags,omitempty"`
	Author             string         `json:"author,omitempty"`
	GeneratedContent   map[string]any `json:"generated_content,omitempty"`
}

// Action is a single named, parameterized step. A macro invocation is an
// Action with Name == MacroActionName.
type Action struct {
	Name        string         `json:"action"`
	Params      map[string]any `json:"params"`
	WaitAfterMs int            `json:"wait_after_ms,omitempty"`
	Description string         `json:"description,omitempty"`
}

// MacroActionName is the reserved action name that invokes a macro.
const MacroActionName = "macro"

// MacroInvocationParams decodes the params of a macro-invoking Action.
type MacroInvocationParams struct {
	Name string         `json:"name"`
	Vars map[string]any `json:"vars,omitempty"`
}

// IsMacroCall reports whether a is a macro invocation.
func (a *Action) IsMacroCall() bool {
	return a.Name == MacroActionName
}

// MacroParams parses a's params as a macro invocation. Callers must first
// check IsMacroCall.
func (a *Action) MacroParams() (MacroInvocationParams, error) {
	var out MacroInvocationParams
	name, _ := a.Params["name"].(string)
	if name == "" {
		return out, fmt.Errorf("macro action missing params.name")
	}
	out.Name = name
	if vars, ok := a.Params["vars"].(map[string]any); ok {
		out.Vars = vars
	}
	return out, nil
}

// Macro is a named, reusable, ordered sequence of actions.
type Macro struct {
	Name    string
	Actions []Action
}

// Protocol is the fully parsed, validated, immutable automation document.
// 已解析校验的自动化协议文档，planner 生成、executor 执行。
type Protocol struct {
	Version  string
	Metadata Metadata
	Macros   map[string]Macro
	Actions  []Action
}
