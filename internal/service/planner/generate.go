package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/service/parser"
)

const protocolPromptTemplate = `You generate desktop-automation protocols as JSON. Produce a single JSON
object matching this schema exactly:

{
  "version": "1.0",
  "metadata": {"description": str, "complexity": "simple"|"medium"|"complex", "uses_vision": bool},
  "macros": {"<name>": [<Action>, ...]},
  "actions": [<Action>, ...]
}
Action = {"action": str, "params": {...}, "wait_after_ms"?: int, "description"?: str}

Variable references use {{key}} and are resolved from outputs of earlier actions. Use a macro
whenever the same sequence of actions repeats. Prefer the "visual_navigate" action over manual
verify+move+click sequences when the target is described visually rather than by exact coordinates.

Available actions, grouped by category:
%s

User request: %s

Respond with only the JSON object, no commentary, no markdown code fences.`

const simplifiedProtocolPromptTemplate = `Produce the smallest possible valid protocol JSON object (version "1.0",
metadata, macros, actions) with exactly one action that best satisfies this request. No commentary,
no markdown fences.

Available actions: %s

User request: %s`

// ActionLibrarySchema renders a human-readable summary of every enabled
// action in reg, grouped by category, for the protocol-generation prompt.
func ActionLibrarySchema(reg action.Registry, categories []action.Category) string {
	var b strings.Builder
	for _, cat := range categories {
		entries := reg.ListByCategory(cat)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: ", cat)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// GenerateProtocol asks the LLM to produce protocol JSON for text, repairs
// common JSON defects, validates it, and retries once with a simpler
// prompt on failure (spec §4.5 steps 3-5).
func GenerateProtocol(ctx context.Context, llm LLMClient, reg action.Registry, schema, text string, cfg parser.Config) *parser.Result {
	raw, err := llm.CompleteText(ctx, fmt.Sprintf(protocolPromptTemplate, schema, text))
	if err == nil {
		if res := tryParse(raw, reg, cfg); res.OK() {
			return res
		}
	}

	raw, err = llm.CompleteText(ctx, fmt.Sprintf(simplifiedProtocolPromptTemplate, schema, text))
	if err != nil {
		return &parser.Result{Issues: []parser.Issue{{Message: fmt.Sprintf("protocol generation failed: %v", err)}}}
	}
	return tryParse(raw, reg, cfg)
}

func tryParse(raw string, reg action.Registry, cfg parser.Config) *parser.Result {
	cleaned := repairJSON(stripFence(raw))
	return parser.ParseJSON([]byte(cleaned), reg, cfg)
}

var (
	trailingCommaObj = regexp.MustCompile(`,(\s*})`)
	trailingCommaArr = regexp.MustCompile(`,(\s*\])`)
)

// repairJSON fixes the common defects an LLM's "almost JSON" response
// exhibits: trailing commas before a closing brace/bracket, and missing
// closing braces/brackets at the end of the document. There is no JSON-repair
// library in the dependency corpus, so this is a deliberately narrow,
// stdlib-only pass rather than a full recursive-descent repair (spec §4.5
// step 4: "repair common JSON defects ... and retry once").
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	s = trailingCommaObj.ReplaceAllString(s, "$1")
	s = trailingCommaArr.ReplaceAllString(s, "$1")

	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")
	if openBraces > 0 || openBrackets > 0 {
		s += strings.Repeat("]", max(openBrackets, 0)) + strings.Repeat("}", max(openBraces, 0))
	}
	return s
}
