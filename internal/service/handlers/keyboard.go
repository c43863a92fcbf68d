package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func pressKey(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.KeyPress(ctx, key); err != nil {
		return nil, driverErr("press_key", err)
	}
	return &action.Result{}, nil
}

func shortcut(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	keys := optionalStringSliceParam(params, "keys")
	if len(keys) == 0 {
		if k, err := stringParam(params, "keys"); err == nil {
			keys = []string{k}
		} else {
			return nil, err
		}
	}
	if err := deps.Driver.KeyShortcut(ctx, keys); err != nil {
		return nil, driverErr("shortcut", err)
	}
	return &action.Result{}, nil
}

func typeText(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.TypeText(ctx, text); err != nil {
		return nil, driverErr("type", err)
	}
	return &action.Result{}, nil
}

func typeWithDelay(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	delay := optionalIntParam(params, "delay_ms", 50)
	if err := deps.Driver.TypeTextWithDelay(ctx, text, delay); err != nil {
		return nil, driverErr("type_with_delay", err)
	}
	return &action.Result{}, nil
}

func holdKey(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.HoldKey(ctx, key); err != nil {
		return nil, driverErr("hold_key", err)
	}
	return &action.Result{}, nil
}

func releaseKey(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.ReleaseKey(ctx, key); err != nil {
		return nil, driverErr("release_key", err)
	}
	return &action.Result{}, nil
}

func registerKeyboard(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "press_key", Category: action.CategoryKeyboard, Handler: pressKey, RequiredParams: []string{"key"}, RequiresDriver: true},
		{Name: "shortcut", Category: action.CategoryKeyboard, Handler: shortcut, RequiredParams: []string{"keys"}, RequiresDriver: true},
		{Name: "type", Category: action.CategoryKeyboard, Handler: typeText, RequiredParams: []string{"text"}, RequiresDriver: true},
		{Name: "type_with_delay", Category: action.CategoryKeyboard, Handler: typeWithDelay, RequiredParams: []string{"text"}, OptionalParams: []string{"delay_ms"}, RequiresDriver: true},
		{Name: "hold_key", Category: action.CategoryKeyboard, Handler: holdKey, RequiredParams: []string{"key"}, RequiresDriver: true},
		{Name: "release_key", Category: action.CategoryKeyboard, Handler: releaseKey, RequiredParams: []string{"key"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
