package handlers

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func captureScreen(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	jpegBytes, w, h, err := deps.Driver.CaptureScreen(ctx)
	if err != nil {
		return nil, driverErr("capture_screen", err)
	}
	return &action.Result{Outputs: map[string]any{
		"image_b64": base64.StdEncoding.EncodeToString(jpegBytes),
		"width":     w,
		"height":    h,
	}}, nil
}

func captureRegion(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	w, err := intParam(params, "width")
	if err != nil {
		return nil, err
	}
	h, err := intParam(params, "height")
	if err != nil {
		return nil, err
	}
	jpegBytes, err := deps.Driver.CaptureRegion(ctx, x, y, w, h)
	if err != nil {
		return nil, driverErr("capture_region", err)
	}
	return &action.Result{Outputs: map[string]any{"image_b64": base64.StdEncoding.EncodeToString(jpegBytes)}}, nil
}

// captureWindow has no dedicated per-window capture primitive in the
// driver contract; the reference implementation falls back to a full
// screen capture, which is correct for single-monitor, single-foreground-
// window setups and documented as a reference-driver limitation.
func captureWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	jpegBytes, w, h, err := deps.Driver.CaptureScreen(ctx)
	if err != nil {
		return nil, driverErr("capture_window", err)
	}
	return &action.Result{Outputs: map[string]any{
		"image_b64": base64.StdEncoding.EncodeToString(jpegBytes),
		"width":     w,
		"height":    h,
	}}, nil
}

func saveScreenshot(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	jpegBytes, _, _, err := deps.Driver.CaptureScreen(ctx)
	if err != nil {
		return nil, driverErr("save_screenshot", err)
	}
	if err := os.WriteFile(path, jpegBytes, 0o644); err != nil {
		return nil, driverErr("save_screenshot", err)
	}
	return &action.Result{Outputs: map[string]any{"path": path}}, nil
}

func registerScreen(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "capture_screen", Category: action.CategoryScreen, Handler: captureScreen, OutputKeys: []string{"image_b64", "width", "height"}, RequiresDriver: true},
		{Name: "capture_region", Category: action.CategoryScreen, Handler: captureRegion, RequiredParams: []string{"x", "y", "width", "height"}, OutputKeys: []string{"image_b64"}, RequiresDriver: true},
		{Name: "capture_window", Category: action.CategoryScreen, Handler: captureWindow, OptionalParams: []string{"title"}, OutputKeys: []string{"image_b64", "width", "height"}, RequiresDriver: true},
		{Name: "save_screenshot", Category: action.CategoryScreen, Handler: saveScreenshot, RequiredParams: []string{"path"}, OutputKeys: []string{"path"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
