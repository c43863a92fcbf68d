// Package planner implements the Planner Loop (spec §4.5): the
// interactive session that parses user intent via an LLM, generates and
// validates protocols, dispatches them to the executor over the broker,
// and concurrently services the executor's visual_navigate requests with
// the Vision Navigator.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// LLMClient is the narrow completion call the planner needs for intent
// parsing and protocol generation; the vision-analysis call lives behind
// visionnav.VisionClient instead.
type LLMClient interface {
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// CommandIntent is the LLM's parse of one user utterance (spec §3, §4.5
// step 1).
type CommandIntent struct {
	Action     string         `json:"action"`
	Target     string         `json:"target,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Confidence float64        `json:"confidence"`
}

// DefaultLowConfidenceThreshold matches spec §4.5 step 2.
const DefaultLowConfidenceThreshold = 0.6

const intentPromptTemplate = `You control a desktop automation planner. Parse the user's request into a
single JSON object describing their intent:
{"action": "<short verb phrase>", "target": "<application/element, if any>", "params": {...any extra detail...}, "confidence": <float 0-1>}

Respond with only the JSON object, no commentary.

User request: %s`

// ParseIntent asks the LLM to classify raw user text into a CommandIntent.
// On parse failure it returns a low-confidence catch-all intent rather
// than an error, so the caller can still proceed (spec §4.5 step 2: "warn
// but proceed unless configured to refuse").
func ParseIntent(ctx context.Context, llm LLMClient, text string) (CommandIntent, error) {
	raw, err := llm.CompleteText(ctx, fmt.Sprintf(intentPromptTemplate, text))
	if err != nil {
		return CommandIntent{}, fmt.Errorf("intent parse call failed: %w", err)
	}
	cleaned := stripFence(raw)
	var intent CommandIntent
	if err := json.Unmarshal([]byte(cleaned), &intent); err != nil {
		return CommandIntent{Action: "unknown", Target: text, Confidence: 0}, nil
	}
	return intent, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
