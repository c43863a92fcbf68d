// Package visualnavhandler implements the executor-side of a
// visual_navigate action (spec §4.7): it services the planner's
// visual_state_request and visual_action_cmd exchanges while the outer
// action blocks waiting for the terminal visual_nav_response.
package visualnavhandler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/broker"
	"github.com/ngoclaw/deskflow/internal/domain/vision"
)

// Config mirrors the relevant slice of the vision configuration surface
// (spec §6.4 Vision: coordinate_margin, coordinate_clamp_tolerance,
// screenshot_quality — quality itself is owned by the driver's JPEG
// encoder, not this handler).
type Config struct {
	CoordinateMargin         int
	CoordinateClampTolerance int
	PollInterval             time.Duration
}

func DefaultConfig() Config {
	return Config{
		CoordinateMargin:         vision.DefaultMargin,
		CoordinateClampTolerance: vision.DefaultClampTolerance,
		PollInterval:             50 * time.Millisecond,
	}
}

// Handler drives the three exchanges described in spec §4.7.
// executor 侧处理器，负责响应 planner 发来的状态请求与动作指令。
type Handler struct {
	driver action.Driver
	broker action.Broker
	logger *zap.Logger
	cfg    Config
}

func New(driver action.Driver, brk action.Broker, logger *zap.Logger, cfg Config) *Handler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Handler{driver: driver, broker: brk, logger: logger, cfg: cfg}
}

// Outcome is what Run returns once the outer visual_navigate action
// concludes, already resolved for the fallback-coordinates policy
// (spec §9 Open Question: visual_navigate failure + fallback).
type Outcome struct {
	Status           string // success | failed | timeout
	ActionsTaken     int
	VerifiedX        *int
	VerifiedY        *int
	LastVisionStatus string
	Error            string
	FellBack         bool
}

// Run sends visual_nav_request and then alternates between polling for
// the terminal visual_nav_response and servicing visual_state_request /
// visual_action_cmd, all scoped to requestID, until a terminal message
// arrives or timeout elapses. If the terminal result is failed and
// fallbackXY is non-nil, it performs a plain click at the fallback point
// and reports success with last_vision_status=failed.
func (h *Handler) Run(ctx context.Context, requestID, task, goal string, maxIterations int, timeout time.Duration, fallbackXY *[2]int) (Outcome, error) {
	if goal == "" {
		goal = task
	}
	req := broker.VisualNavRequest{RequestID: requestID, Task: task, Goal: goal, MaxIterations: maxIterations}
	if err := h.broker.Send(ctx, broker.ChannelVisualNavRequest, req, requestID); err != nil {
		return Outcome{}, apperr.Wrap(apperr.ExternalCallFailed, "sending visual_nav_request", err)
	}
	if h.logger != nil {
		h.logger.Info("visual_navigate started", zap.String("request_id", requestID), zap.String("task", task))
	}

	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return Outcome{}, apperr.New(apperr.Cancelled, "visual_navigate cancelled")
		}
		if time.Now().After(deadline) {
			return h.resolveTimeout(ctx, fallbackXY)
		}

		if raw, ok, err := h.broker.Receive(ctx, broker.ChannelVisualNavResponse, 50, requestID); err != nil {
			return Outcome{}, apperr.Wrap(apperr.ExternalCallFailed, "receiving visual_nav_response", err)
		} else if ok {
			var resp broker.VisualNavResponse
			if err := decode(raw, &resp); err != nil {
				return Outcome{}, apperr.Wrap(apperr.ExternalCallFailed, "decoding visual_nav_response", err)
			}
			return h.resolveTerminal(ctx, resp, fallbackXY)
		}

		if err := h.serviceStateRequest(ctx, requestID); err != nil {
			return Outcome{}, err
		}
		if err := h.serviceActionCmd(ctx, requestID); err != nil {
			return Outcome{}, err
		}
	}
}

func (h *Handler) serviceStateRequest(ctx context.Context, requestID string) error {
	raw, ok, err := h.broker.Receive(ctx, broker.ChannelVisualStateRequest, 0, requestID)
	if err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "receiving visual_state_request", err)
	}
	if !ok {
		return nil
	}
	var req broker.VisualStateRequest
	if err := decode(raw, &req); err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "decoding visual_state_request", err)
	}

	jpegBytes, w, hgt, err := h.driver.CaptureScreen(ctx)
	if err != nil {
		return apperr.Wrap(apperr.DriverFailure, "capturing screen for visual_state_response", err)
	}
	mx, my, err := h.driver.MousePosition(ctx)
	if err != nil {
		return apperr.Wrap(apperr.DriverFailure, "reading mouse position for visual_state_response", err)
	}
	resp := broker.VisualStateResponse{
		RequestID:     requestID,
		ScreenshotB64: base64.StdEncoding.EncodeToString(jpegBytes),
		MouseX:        mx,
		MouseY:        my,
		ScreenW:       w,
		ScreenH:       hgt,
	}
	if err := h.broker.Send(ctx, broker.ChannelVisualStateResponse, resp, requestID); err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "sending visual_state_response", err)
	}
	return nil
}

func (h *Handler) serviceActionCmd(ctx context.Context, requestID string) error {
	raw, ok, err := h.broker.Receive(ctx, broker.ChannelVisualActionCmd, 0, requestID)
	if err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "receiving visual_action_cmd", err)
	}
	if !ok {
		return nil
	}
	var cmd broker.VisualActionCmd
	if err := decode(raw, &cmd); err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "decoding visual_action_cmd", err)
	}

	result := broker.VisualActionResult{RequestID: requestID, Status: "success"}

	if cmd.X != nil && cmd.Y != nil {
		w, hgt, err := h.driver.ScreenSize(ctx)
		if err != nil {
			result.Status, result.Error = "failed", err.Error()
			_ = h.broker.Send(ctx, broker.ChannelVisualActionResult, result, requestID)
			return nil
		}
		cx, cy, _, unsafe := vision.ValidateCoordinate(*cmd.X, *cmd.Y, w, hgt, h.cfg.CoordinateMargin, h.cfg.CoordinateClampTolerance)
		if unsafe {
			result.Status = "failed"
			result.Error = "UNSAFE_COORDINATES"
			_ = h.broker.Send(ctx, broker.ChannelVisualActionResult, result, requestID)
			return nil
		}
		cmd.X, cmd.Y = &cx, &cy
	}

	if err := h.dispatch(ctx, cmd); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
	}

	mx, my, _ := h.driver.MousePosition(ctx)
	result.MouseX, result.MouseY = mx, my

	if cmd.RequestFollowup && result.Status == "success" {
		if jpegBytes, _, _, err := h.driver.CaptureScreen(ctx); err == nil {
			result.FollowupScreenshotB64 = base64.StdEncoding.EncodeToString(jpegBytes)
		}
	}

	if err := h.broker.Send(ctx, broker.ChannelVisualActionResult, result, requestID); err != nil {
		return apperr.Wrap(apperr.ExternalCallFailed, "sending visual_action_result", err)
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, cmd broker.VisualActionCmd) error {
	switch vision.Action(cmd.Action) {
	case vision.ActionClick:
		return h.driver.MouseClick(ctx, *cmd.X, *cmd.Y, "left")
	case vision.ActionDoubleClick:
		return h.driver.MouseDoubleClick(ctx, *cmd.X, *cmd.Y)
	case vision.ActionRightClick:
		return h.driver.MouseClick(ctx, *cmd.X, *cmd.Y, "right")
	case vision.ActionType:
		return h.driver.TypeText(ctx, cmd.Text)
	case vision.ActionNoAction:
		return nil
	default:
		return apperr.Newf(apperr.MalformedAction, "visual_action_cmd: unknown action %q", cmd.Action)
	}
}

func (h *Handler) resolveTerminal(ctx context.Context, resp broker.VisualNavResponse, fallbackXY *[2]int) (Outcome, error) {
	out := Outcome{
		Status:           resp.Status,
		ActionsTaken:     resp.ActionsTaken,
		LastVisionStatus: resp.Status,
		Error:            resp.Error,
	}
	if resp.FinalX != nil && resp.FinalY != nil {
		out.VerifiedX, out.VerifiedY = resp.FinalX, resp.FinalY
	}
	if resp.Status != "success" && fallbackXY != nil {
		return h.fallbackClick(ctx, out, fallbackXY)
	}
	return out, nil
}

func (h *Handler) resolveTimeout(ctx context.Context, fallbackXY *[2]int) (Outcome, error) {
	out := Outcome{Status: "timeout", LastVisionStatus: "timeout"}
	if fallbackXY != nil {
		return h.fallbackClick(ctx, out, fallbackXY)
	}
	return out, nil
}

// fallbackClick implements the Open Question 4 resolution: a failed or
// timed-out vision loop with fallback_coordinates supplied still reports
// success to the protocol, but last_vision_status preserves the real
// outcome so protocols can branch on it.
func (h *Handler) fallbackClick(ctx context.Context, out Outcome, fallbackXY *[2]int) (Outcome, error) {
	x, y := fallbackXY[0], fallbackXY[1]
	if err := h.driver.MouseClick(ctx, x, y, "left"); err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Status = "success"
	out.FellBack = true
	out.VerifiedX, out.VerifiedY = &x, &y
	return out, nil
}

func decode(raw action.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}
