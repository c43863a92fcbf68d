// Package visionnav implements the planner-side Vision Navigator
// (spec §4.6): the bounded capture -> analyze -> act -> verify loop driven
// from a visual_nav_request until the vision model reports completion,
// the iteration budget is exhausted, or a safety check aborts the loop.
package visionnav

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/broker"
	"github.com/ngoclaw/deskflow/internal/domain/vision"
)

// Broker is the narrow planner-side transport slice the navigator needs:
// request a screen snapshot and dispatch an action, both scoped to one
// request_id.
type Broker interface {
	Send(ctx context.Context, channel string, payload any, requestID string) error
	Receive(ctx context.Context, channel string, timeoutMs int, requestID string) (payload []byte, ok bool, err error)
}

// VisionClient is the opaque vision-model call: given the latest
// screenshot and context, return a parsed NavigationResult (spec §4.6.4;
// markdown fence stripping and parse-failure fallback are the concrete
// adapter's responsibility, not the navigator's).
type VisionClient interface {
	AnalyzeVision(ctx context.Context, req AnalyzeRequest) (vision.NavigationResult, error)
}

// AnalyzeRequest bundles the inputs a vision-model prompt needs (spec §4.6.4).
type AnalyzeRequest struct {
	ScreenshotJPEG []byte
	ScreenW        int
	ScreenH        int
	MouseX         int
	MouseY         int
	Task           string
	History        []vision.HistoryEntry
}

// Confirmer blocks for explicit user confirmation before a critical action
// proceeds (spec §4.6.3, §9 Open Question: unattended critical-keyword
// confirmation).
type Confirmer interface {
	ConfirmCritical(ctx context.Context, keywords []string, reasoning string) bool
}

// AuditEntry is one line of the optional JSON-lines audit log (spec §4.6.5).
type AuditEntry struct {
	TimestampMs  int64
	RequestID    string
	Iteration    int
	Action       vision.Action
	Coordinates  *vision.Coordinates
	Confidence   float64
	Reasoning    string
	Clamped      bool
	LoopDetected bool
	Critical     bool
	Outcome      string
}

// AuditSink receives one AuditEntry per iteration.
type AuditSink interface {
	LogIteration(entry AuditEntry)
}

// Config is the vision configuration surface (spec §6.4 Vision:).
type Config struct {
	MaxIterations                 int
	ConfidenceThreshold           float64
	RequireConfirmationForCritical bool
	CriticalKeywords              []string
	LoopDetectionThreshold        int
	LoopDetectionBufferSize       int
	CoordinateMargin              int
	CoordinateClampTolerance      int
	StateTimeoutMs                int
	ActionTimeoutMs               int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:                 10,
		ConfidenceThreshold:           0.6,
		RequireConfirmationForCritical: true,
		CriticalKeywords:              []string{"delete", "format", "shutdown", "remove", "erase", "destroy", "wipe", "reset"},
		LoopDetectionThreshold:        3,
		LoopDetectionBufferSize:       10,
		CoordinateMargin:              vision.DefaultMargin,
		CoordinateClampTolerance:      vision.DefaultClampTolerance,
		StateTimeoutMs:                10_000,
		ActionTimeoutMs:               10_000,
	}
}

// Navigator runs the iteration loop for one visual_nav_request.
// 视觉导航器：截图 -> 分析 -> 执行 -> 校验，直到完成、超限或触发安全中止。
type Navigator struct {
	broker    Broker
	vision    VisionClient
	confirmer Confirmer
	audit     AuditSink
	logger    *zap.Logger
	cfg       Config
}

func New(b Broker, vc VisionClient, confirmer Confirmer, audit AuditSink, logger *zap.Logger, cfg Config) *Navigator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.LoopDetectionBufferSize <= 0 {
		cfg.LoopDetectionBufferSize = 10
	}
	if cfg.LoopDetectionThreshold <= 0 {
		cfg.LoopDetectionThreshold = 3
	}
	return &Navigator{broker: b, vision: vc, confirmer: confirmer, audit: audit, logger: logger, cfg: cfg}
}

// Navigate runs the capture/analyze/act loop for requestID and returns the
// terminal VisualNavResponse payload to send back to the executor.
func (n *Navigator) Navigate(ctx context.Context, requestID, task, goal string, maxIterations int) broker.VisualNavResponse {
	if maxIterations <= 0 {
		maxIterations = n.cfg.MaxIterations
	}
	history := vision.NewHistory(n.cfg.LoopDetectionBufferSize)
	actionsTaken := 0

	for iter := 1; iter <= maxIterations; iter++ {
		state, err := n.requestState(ctx, requestID)
		if err != nil {
			return broker.VisualNavResponse{RequestID: requestID, Status: "failed", ActionsTaken: actionsTaken, Error: err.Error()}
		}

		screenshot, decodeErr := base64.StdEncoding.DecodeString(state.ScreenshotB64)
		if decodeErr != nil {
			return broker.VisualNavResponse{RequestID: requestID, Status: "failed", ActionsTaken: actionsTaken, Error: "undecodable screenshot"}
		}

		vnr, err := n.vision.AnalyzeVision(ctx, AnalyzeRequest{
			ScreenshotJPEG: screenshot,
			ScreenW:        state.ScreenW,
			ScreenH:        state.ScreenH,
			MouseX:         state.MouseX,
			MouseY:         state.MouseY,
			Task:           goal,
			History:        history.Entries(),
		})
		if err != nil {
			vnr = vision.NavigationResult{Action: vision.ActionNoAction, Reasoning: fmt.Sprintf("vision analysis failed: %v", err)}
		}

		if vnr.Action != vision.ActionNoAction && vnr.Confidence < n.cfg.ConfidenceThreshold {
			n.logAudit(requestID, iter, vnr, false, false, n.isCritical(vnr.Reasoning), "low_confidence")
			history.Append(vision.HistoryEntry{Action: vision.ActionNoAction, Timestamp: time.Now()})
			continue
		}

		if vnr.Action == vision.ActionComplete {
			n.logAudit(requestID, iter, vnr, false, false, n.isCritical(vnr.Reasoning), "complete")
			var fx, fy *int
			if vnr.Coordinates != nil {
				fx, fy = &vnr.Coordinates.X, &vnr.Coordinates.Y
			}
			return broker.VisualNavResponse{RequestID: requestID, Status: "success", ActionsTaken: actionsTaken, FinalX: fx, FinalY: fy, LastReasoning: vnr.Reasoning}
		}

		clamped := false
		if vnr.Action.IsClickVariant() && vnr.Coordinates != nil {
			cx, cy, wasClamped, unsafe := vision.ValidateCoordinate(vnr.Coordinates.X, vnr.Coordinates.Y, state.ScreenW, state.ScreenH, n.cfg.CoordinateMargin, n.cfg.CoordinateClampTolerance)
			if unsafe {
				n.logAudit(requestID, iter, vnr, false, false, false, "unsafe_coordinates")
				history.Append(vision.HistoryEntry{Action: vision.ActionNoAction, Timestamp: time.Now()})
				continue
			}
			if wasClamped {
				clamped = true
				vnr.Coordinates = &vision.Coordinates{X: cx, Y: cy}
				vnr.Confidence *= 0.9
			}
		}

		critical := n.isCritical(vnr.Reasoning)
		if critical && n.cfg.RequireConfirmationForCritical {
			if n.confirmer == nil || !n.confirmer.ConfirmCritical(ctx, n.matchedKeywords(vnr.Reasoning), vnr.Reasoning) {
				n.logAudit(requestID, iter, vnr, clamped, false, true, "critical_denied")
				return broker.VisualNavResponse{RequestID: requestID, Status: "failed", ActionsTaken: actionsTaken, Reason: "CRITICAL_DENIED", LastReasoning: vnr.Reasoning}
			}
		}

		if n.detectLoop(history, vnr) {
			n.logAudit(requestID, iter, vnr, clamped, true, critical, "loop_detected")
			return broker.VisualNavResponse{RequestID: requestID, Status: "failed", ActionsTaken: actionsTaken, Reason: "LOOP_DETECTED", LastReasoning: vnr.Reasoning}
		}

		if err := n.dispatchAction(ctx, requestID, vnr); err != nil {
			n.logAudit(requestID, iter, vnr, clamped, false, critical, "dispatch_failed")
			return broker.VisualNavResponse{RequestID: requestID, Status: "failed", ActionsTaken: actionsTaken, Error: err.Error()}
		}

		history.Append(vision.HistoryEntry{Action: vnr.Action, Coordinates: vnr.Coordinates, Timestamp: time.Now()})
		actionsTaken++
		n.logAudit(requestID, iter, vnr, clamped, false, critical, "dispatched")
	}

	return broker.VisualNavResponse{RequestID: requestID, Status: "timeout", ActionsTaken: actionsTaken}
}

func (n *Navigator) requestState(ctx context.Context, requestID string) (broker.VisualStateResponse, error) {
	if err := n.broker.Send(ctx, broker.ChannelVisualStateRequest, broker.VisualStateRequest{RequestID: requestID}, requestID); err != nil {
		return broker.VisualStateResponse{}, apperr.Wrap(apperr.ExternalCallFailed, "sending visual_state_request", err)
	}
	deadline := time.Now().Add(time.Duration(n.cfg.StateTimeoutMs) * time.Millisecond)
	for time.Now().Before(deadline) {
		raw, ok, err := n.broker.Receive(ctx, broker.ChannelVisualStateResponse, 50, requestID)
		if err != nil {
			return broker.VisualStateResponse{}, apperr.Wrap(apperr.ExternalCallFailed, "receiving visual_state_response", err)
		}
		if ok {
			var resp broker.VisualStateResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return broker.VisualStateResponse{}, apperr.Wrap(apperr.ExternalCallFailed, "decoding visual_state_response", err)
			}
			return resp, nil
		}
	}
	return broker.VisualStateResponse{}, apperr.New(apperr.Timeout, "timed out waiting for visual_state_response")
}

func (n *Navigator) dispatchAction(ctx context.Context, requestID string, vnr vision.NavigationResult) error {
	cmd := broker.VisualActionCmd{RequestID: requestID, Action: string(vnr.Action), Text: vnr.TextToType, RequestFollowup: vnr.RequiresFollowup}
	if vnr.Coordinates != nil {
		cmd.X, cmd.Y = &vnr.Coordinates.X, &vnr.Coordinates.Y
	}
	if err := n.broker.Send(ctx, broker.ChannelVisualActionCmd, cmd, requestID); err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "sending visual_action_cmd", err)
	}
	deadline := time.Now().Add(time.Duration(n.cfg.ActionTimeoutMs) * time.Millisecond)
	for time.Now().Before(deadline) {
		raw, ok, err := n.broker.Receive(ctx, broker.ChannelVisualActionResult, 50, requestID)
		if err != nil {
			return apperr.Wrap(apperr.ExternalCallFailed, "receiving visual_action_result", err)
		}
		if ok {
			var res broker.VisualActionResult
			if err := json.Unmarshal(raw, &res); err != nil {
				return apperr.Wrap(apperr.ExternalCallFailed, "decoding visual_action_result", err)
			}
			if res.Status != "success" {
				return apperr.Newf(apperr.DriverFailure, "visual_action_cmd failed: %s", res.Error)
			}
			return nil
		}
	}
	return apperr.New(apperr.Timeout, "timed out waiting for visual_action_result")
}

// detectLoop implements §4.6.2: the last K entries share an action name
// and are pairwise within 5px of each other.
func (n *Navigator) detectLoop(history *vision.History, vnr vision.NavigationResult) bool {
	entries := history.Entries()
	k := n.cfg.LoopDetectionThreshold
	if len(entries) < k-1 {
		return false
	}
	recent := append(append([]vision.HistoryEntry{}, entries[len(entries)-(k-1):]...), vision.HistoryEntry{Action: vnr.Action, Coordinates: vnr.Coordinates})
	if len(recent) < k {
		return false
	}
	name := recent[0].Action
	for _, e := range recent {
		if e.Action != name {
			return false
		}
	}
	for i := 0; i < len(recent); i++ {
		for j := i + 1; j < len(recent); j++ {
			if !closeEnough(recent[i].Coordinates, recent[j].Coordinates, 5) {
				return false
			}
		}
	}
	return true
}

func closeEnough(a, b *vision.Coordinates, px int) bool {
	if a == nil || b == nil {
		return a == b
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx <= px && dy <= px
}

func (n *Navigator) isCritical(reasoning string) bool {
	return len(n.matchedKeywords(reasoning)) > 0
}

func (n *Navigator) matchedKeywords(reasoning string) []string {
	lower := strings.ToLower(reasoning)
	var matched []string
	for _, kw := range n.cfg.CriticalKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (n *Navigator) logAudit(requestID string, iter int, vnr vision.NavigationResult, clamped, loopDetected, critical bool, outcome string) {
	if n.audit == nil {
		return
	}
	n.audit.LogIteration(AuditEntry{
		TimestampMs:  time.Now().UnixMilli(),
		RequestID:    requestID,
		Iteration:    iter,
		Action:       vnr.Action,
		Coordinates:  vnr.Coordinates,
		Confidence:   vnr.Confidence,
		Reasoning:    vnr.Reasoning,
		Clamped:      clamped,
		LoopDetected: loopDetected,
		Critical:     critical,
		Outcome:      outcome,
	})
}
