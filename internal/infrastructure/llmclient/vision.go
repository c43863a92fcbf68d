package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ngoclaw/deskflow/internal/domain/vision"
	"github.com/ngoclaw/deskflow/internal/service/visionnav"
)

// VisionAdapter implements visionnav.VisionClient on top of a reference
// Client, building the prompt described in spec §4.6.4 and tolerating
// markdown code-fence wrappers around the model's JSON reply.
type VisionAdapter struct {
	client *Client
}

// NewVisionAdapter wraps client as a visionnav.VisionClient.
func NewVisionAdapter(client *Client) *VisionAdapter {
	return &VisionAdapter{client: client}
}

var _ visionnav.VisionClient = (*VisionAdapter)(nil)

// AnalyzeVision asks the vision model to propose the next action. On
// request failure, parse failure, or an empty/blocked response it falls
// back to a no_action result with confidence 0 and a diagnostic
// reasoning string, per spec §4.6.4 — never an error, so the navigation
// loop can count the iteration and continue.
func (a *VisionAdapter) AnalyzeVision(ctx context.Context, req visionnav.AnalyzeRequest) (vision.NavigationResult, error) {
	prompt := buildVisionPrompt(req)
	raw, err := a.client.CompleteVision(ctx, prompt, req.ScreenshotJPEG)
	if err != nil {
		return noAction(fmt.Sprintf("vision model call failed: %v", err)), nil
	}
	if strings.TrimSpace(raw) == "" {
		return noAction("vision model returned an empty response"), nil
	}
	result, err := parseNavigationResult(raw)
	if err != nil {
		return noAction(fmt.Sprintf("could not parse vision model response: %v", err)), nil
	}
	return result, nil
}

func buildVisionPrompt(req visionnav.AnalyzeRequest) string {
	var sb strings.Builder
	sb.WriteString("You are controlling a desktop via mouse and keyboard. ")
	sb.WriteString("You are shown a screenshot of the current screen state.\n\n")
	fmt.Fprintf(&sb, "Task: %s\n", req.Task)
	fmt.Fprintf(&sb, "Screen resolution: %dx%d\n", req.ScreenW, req.ScreenH)
	fmt.Fprintf(&sb, "Current mouse position: (%d, %d)\n", req.MouseX, req.MouseY)

	if len(req.History) > 0 {
		sb.WriteString("Recent actions (avoid repeating these if they did not make progress):\n")
		for _, h := range req.History {
			if h.Coordinates != nil {
				fmt.Fprintf(&sb, "- %s at (%d, %d)\n", h.Action, h.Coordinates.X, h.Coordinates.Y)
			} else {
				fmt.Fprintf(&sb, "- %s\n", h.Action)
			}
		}
	}

	sb.WriteString("\nRespond with a single JSON object (markdown code fences are fine) with exactly these fields:\n")
	sb.WriteString(`{"action": "click|double_click|right_click|type|no_action|complete", ` +
		`"coordinates": {"x": int, "y": int} or null, "text_to_type": string or null, ` +
		`"confidence": float in [0,1], "reasoning": string, "requires_followup": bool}` + "\n")
	sb.WriteString("Use \"complete\" only when the task is fully accomplished.\n")
	return sb.String()
}

// parseNavigationResult strips optional markdown code fences and decodes
// the remaining JSON object (spec §4.6.4).
func parseNavigationResult(raw string) (vision.NavigationResult, error) {
	cleaned := stripCodeFence(raw)
	var result vision.NavigationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return vision.NavigationResult{}, err
	}
	if result.Action == "" {
		return vision.NavigationResult{}, fmt.Errorf("missing action field")
	}
	return result, nil
}

func stripCodeFence(s string) string {
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

func noAction(reasoning string) vision.NavigationResult {
	return vision.NavigationResult{
		Action:     vision.ActionNoAction,
		Confidence: 0,
		Reasoning:  reasoning,
	}
}
