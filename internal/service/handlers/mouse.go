package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func mouseMove(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.MouseMove(ctx, x, y); err != nil {
		return nil, driverErr("mouse_move", err)
	}
	return &action.Result{}, nil
}

func mouseClick(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	button := optionalStringParam(params, "button", "left")
	if err := deps.Driver.MouseClick(ctx, x, y, button); err != nil {
		return nil, driverErr("mouse_click", err)
	}
	return &action.Result{}, nil
}

func mouseDoubleClick(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.MouseDoubleClick(ctx, x, y); err != nil {
		return nil, driverErr("mouse_double_click", err)
	}
	return &action.Result{}, nil
}

func mouseRightClick(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.MouseClick(ctx, x, y, "right"); err != nil {
		return nil, driverErr("mouse_right_click", err)
	}
	return &action.Result{}, nil
}

func mouseDrag(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	fromX, err := intParam(params, "from_x")
	if err != nil {
		return nil, err
	}
	fromY, err := intParam(params, "from_y")
	if err != nil {
		return nil, err
	}
	toX, err := intParam(params, "to_x")
	if err != nil {
		return nil, err
	}
	toY, err := intParam(params, "to_y")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.MouseDrag(ctx, fromX, fromY, toX, toY); err != nil {
		return nil, driverErr("mouse_drag", err)
	}
	return &action.Result{}, nil
}

func mouseScroll(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	dx := optionalIntParam(params, "dx", 0)
	dy := optionalIntParam(params, "dy", 0)
	if err := deps.Driver.MouseScroll(ctx, dx, dy); err != nil {
		return nil, driverErr("mouse_scroll", err)
	}
	return &action.Result{}, nil
}

func mousePosition(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, y, err := deps.Driver.MousePosition(ctx)
	if err != nil {
		return nil, driverErr("mouse_position", err)
	}
	return &action.Result{Outputs: map[string]any{"x": x, "y": y}}, nil
}

func registerMouse(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "mouse_move", Category: action.CategoryMouse, Handler: mouseMove, RequiredParams: []string{"x", "y"}, RequiresDriver: true},
		{Name: "mouse_click", Category: action.CategoryMouse, Handler: mouseClick, RequiredParams: []string{"x", "y"}, OptionalParams: []string{"button"}, RequiresDriver: true},
		{Name: "mouse_double_click", Category: action.CategoryMouse, Handler: mouseDoubleClick, RequiredParams: []string{"x", "y"}, RequiresDriver: true},
		{Name: "mouse_right_click", Category: action.CategoryMouse, Handler: mouseRightClick, RequiredParams: []string{"x", "y"}, RequiresDriver: true},
		{Name: "mouse_drag", Category: action.CategoryMouse, Handler: mouseDrag, RequiredParams: []string{"from_x", "from_y", "to_x", "to_y"}, RequiresDriver: true},
		{Name: "mouse_scroll", Category: action.CategoryMouse, Handler: mouseScroll, OptionalParams: []string{"dx", "dy"}, RequiresDriver: true},
		{Name: "mouse_position", Category: action.CategoryMouse, Handler: mousePosition, OutputKeys: []string{"x", "y"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
