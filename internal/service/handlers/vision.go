package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/service/visualnavhandler"
)

func visualNavigate(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	task, err := stringParam(params, "task")
	if err != nil {
		return nil, err
	}
	goal := optionalStringParam(params, "goal", task)
	maxIterations := optionalIntParam(params, "max_iterations", 10)
	timeoutSec := optionalIntParam(params, "timeout", 60)

	var fallback *[2]int
	if fx, fy, ok := coordPairParam(params, "fallback_coordinates"); ok {
		fallback = &[2]int{fx, fy}
	}

	h := visualnavhandler.New(deps.Driver, deps.Broker, nil, visualnavhandler.DefaultConfig())
	requestID := uuid.NewString()
	out, err := h.Run(ctx, requestID, task, goal, maxIterations, time.Duration(timeoutSec)*time.Second, fallback)
	if err != nil {
		return nil, err
	}

	outputs := map[string]any{
		"last_vision_status":        out.LastVisionStatus,
		"last_vision_actions_taken": out.ActionsTaken,
	}
	if out.VerifiedX != nil {
		outputs["verified_x"] = *out.VerifiedX
	}
	if out.VerifiedY != nil {
		outputs["verified_y"] = *out.VerifiedY
	}
	if out.Status != "success" {
		return &action.Result{Outputs: outputs}, apperr.Newf(apperr.ExternalCallFailed, "visual_navigate: %s", out.Error).WithDetails(map[string]any{"status": out.Status})
	}
	return &action.Result{Outputs: outputs}, nil
}

// singleShotVision runs visual_navigate with max_iterations=1 and
// interprets the terminal result as a one-shot verify/find query, for the
// verify_screen / verify_element / find_element / verify_text actions.
func singleShotVision(name string, taskPrefix func(params map[string]any) (string, error)) action.Handler {
	return func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
		task, err := taskPrefix(params)
		if err != nil {
			return nil, err
		}
		timeoutSec := optionalIntParam(params, "timeout", 30)

		h := visualnavhandler.New(deps.Driver, deps.Broker, nil, visualnavhandler.DefaultConfig())
		requestID := uuid.NewString()
		out, err := h.Run(ctx, requestID, task, task, 1, time.Duration(timeoutSec)*time.Second, nil)
		if err != nil {
			return nil, err
		}
		outputs := map[string]any{"verified": out.Status == "success"}
		if out.VerifiedX != nil {
			outputs["verified_x"] = *out.VerifiedX
		}
		if out.VerifiedY != nil {
			outputs["verified_y"] = *out.VerifiedY
		}
		return &action.Result{Outputs: outputs}, nil
	}
}

func verifyScreenTask(params map[string]any) (string, error) {
	return stringParam(params, "description")
}

func verifyElementTask(params map[string]any) (string, error) {
	return "locate element: " + optionalStringParam(params, "description", ""), nil
}

func findElementTask(params map[string]any) (string, error) {
	d, err := stringParam(params, "description")
	if err != nil {
		return "", err
	}
	return "find element: " + d, nil
}

func verifyTextTask(params map[string]any) (string, error) {
	t, err := stringParam(params, "text")
	if err != nil {
		return "", err
	}
	return "verify text is visible on screen: " + t, nil
}

func registerVision(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "verify_screen", Category: action.CategoryVision, Handler: singleShotVision("verify_screen", verifyScreenTask), RequiredParams: []string{"description"}, OutputKeys: []string{"verified"}, RequiresDriver: true, RequiresBroker: true},
		{Name: "verify_element", Category: action.CategoryVision, Handler: singleShotVision("verify_element", verifyElementTask), RequiredParams: []string{"description"}, OutputKeys: []string{"verified", "verified_x", "verified_y"}, RequiresDriver: true, RequiresBroker: true},
		{Name: "find_element", Category: action.CategoryVision, Handler: singleShotVision("find_element", findElementTask), RequiredParams: []string{"description"}, OutputKeys: []string{"verified", "verified_x", "verified_y"}, RequiresDriver: true, RequiresBroker: true},
		{Name: "verify_text", Category: action.CategoryVision, Handler: singleShotVision("verify_text", verifyTextTask), RequiredParams: []string{"text"}, OutputKeys: []string{"verified"}, RequiresDriver: true, RequiresBroker: true},
		{Name: "visual_navigate", Category: action.CategoryVision, Handler: visualNavigate, RequiredParams: []string{"task"}, OptionalParams: []string{"goal", "max_iterations", "fallback_coordinates", "timeout"}, OutputKeys: []string{"verified_x", "verified_y", "last_vision_status", "last_vision_actions_taken"}, RequiresDriver: true, RequiresBroker: true},
	}
	return registerAll(reg, entries)
}
