package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func openApp(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.OpenApp(ctx, name); err != nil {
		return nil, driverErr("open_app", err)
	}
	return &action.Result{}, nil
}

func closeApp(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.CloseApp(ctx, name); err != nil {
		return nil, driverErr("close_app", err)
	}
	return &action.Result{}, nil
}

func switchWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title, err := stringParam(params, "title")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.SwitchWindow(ctx, title); err != nil {
		return nil, driverErr("switch_window", err)
	}
	return &action.Result{}, nil
}

func minimizeWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title := optionalStringParam(params, "title", "")
	if err := deps.Driver.MinimizeWindow(ctx, title); err != nil {
		return nil, driverErr("minimize_window", err)
	}
	return &action.Result{}, nil
}

func maximizeWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title := optionalStringParam(params, "title", "")
	if err := deps.Driver.MaximizeWindow(ctx, title); err != nil {
		return nil, driverErr("maximize_window", err)
	}
	return &action.Result{}, nil
}

func restoreWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title := optionalStringParam(params, "title", "")
	if err := deps.Driver.RestoreWindow(ctx, title); err != nil {
		return nil, driverErr("restore_window", err)
	}
	return &action.Result{}, nil
}

func getActiveWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title, err := deps.Driver.ActiveWindow(ctx)
	if err != nil {
		return nil, driverErr("get_active_window", err)
	}
	return &action.Result{Outputs: map[string]any{"title": title}}, nil
}

func registerWindow(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "open_app", Category: action.CategoryWindow, Handler: openApp, RequiredParams: []string{"name"}, RequiresDriver: true},
		{Name: "close_app", Category: action.CategoryWindow, Handler: closeApp, RequiredParams: []string{"name"}, RequiresDriver: true},
		{Name: "switch_window", Category: action.CategoryWindow, Handler: switchWindow, RequiredParams: []string{"title"}, RequiresDriver: true},
		{Name: "minimize_window", Category: action.CategoryWindow, Handler: minimizeWindow, OptionalParams: []string{"title"}, RequiresDriver: true},
		{Name: "maximize_window", Category: action.CategoryWindow, Handler: maximizeWindow, OptionalParams: []string{"title"}, RequiresDriver: true},
		{Name: "restore_window", Category: action.CategoryWindow, Handler: restoreWindow, OptionalParams: []string{"title"}, RequiresDriver: true},
		{Name: "get_active_window", Category: action.CategoryWindow, Handler: getActiveWindow, OutputKeys: []string{"title"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
