package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func selectAll(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "a"}); err != nil {
		return nil, driverErr("select_all", err)
	}
	return &action.Result{}, nil
}

func undo(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "z"}); err != nil {
		return nil, driverErr("undo", err)
	}
	return &action.Result{}, nil
}

func redo(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "y"}); err != nil {
		return nil, driverErr("redo", err)
	}
	return &action.Result{}, nil
}

// findReplace drives the generic find/replace dialog most editors bind to
// ctrl+h: open it, type the search term, advance focus, type the
// replacement, then replace-all.
func findReplace(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	find, err := stringParam(params, "find")
	if err != nil {
		return nil, err
	}
	replace := optionalStringParam(params, "replace", "")

	steps := []func() error{
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"ctrl", "h"}) },
		func() error { return deps.Driver.TypeText(ctx, find) },
		func() error { return deps.Driver.KeyPress(ctx, "tab") },
		func() error { return deps.Driver.TypeText(ctx, replace) },
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"ctrl", "alt", "enter"}) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, driverErr("find_replace", err)
		}
	}
	return &action.Result{}, nil
}

// deleteLine selects the current line via Home, Shift+Down and removes it.
func deleteLine(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	steps := []func() error{
		func() error { return deps.Driver.KeyPress(ctx, "home") },
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"shift", "down"}) },
		func() error { return deps.Driver.KeyPress(ctx, "delete") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, driverErr("delete_line", err)
		}
	}
	return &action.Result{}, nil
}

// duplicateLine selects the current line, copies it, then pastes a copy
// on the following line.
func duplicateLine(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	steps := []func() error{
		func() error { return deps.Driver.KeyPress(ctx, "home") },
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"shift", "down"}) },
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"ctrl", "c"}) },
		func() error { return deps.Driver.KeyPress(ctx, "end") },
		func() error { return deps.Driver.KeyPress(ctx, "enter") },
		func() error { return deps.Driver.KeyShortcut(ctx, []string{"ctrl", "v"}) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, driverErr("duplicate_line", err)
		}
	}
	return &action.Result{}, nil
}

func registerEdit(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "select_all", Category: action.CategoryEdit, Handler: selectAll, RequiresDriver: true},
		{Name: "undo", Category: action.CategoryEdit, Handler: undo, RequiresDriver: true},
		{Name: "redo", Category: action.CategoryEdit, Handler: redo, RequiresDriver: true},
		{Name: "find_replace", Category: action.CategoryEdit, Handler: findReplace, RequiredParams: []string{"find"}, OptionalParams: []string{"replace"}, RequiresDriver: true},
		{Name: "delete_line", Category: action.CategoryEdit, Handler: deleteLine, RequiresDriver: true},
		{Name: "duplicate_line", Category: action.CategoryEdit, Handler: duplicateLine, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
