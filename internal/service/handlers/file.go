package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func openFile(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.OpenFile(ctx, path); err != nil {
		return nil, driverErr("open_file", err)
	}
	return &action.Result{}, nil
}

func saveFile(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "s"}); err != nil {
		return nil, driverErr("save_file", err)
	}
	return &action.Result{}, nil
}

func saveAs(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "shift", "s"}); err != nil {
		return nil, driverErr("save_as", err)
	}
	path := optionalStringParam(params, "path", "")
	if path == "" {
		return &action.Result{}, nil
	}
	if err := deps.Driver.TypeText(ctx, path); err != nil {
		return nil, driverErr("save_as", err)
	}
	return &action.Result{}, nil
}

func openFileDialog(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "o"}); err != nil {
		return nil, driverErr("open_file_dialog", err)
	}
	return &action.Result{}, nil
}

func createFolder(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.CreateFolder(ctx, path); err != nil {
		return nil, driverErr("create_folder", err)
	}
	return &action.Result{}, nil
}

func deleteFile(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.DeleteFile(ctx, path); err != nil {
		return nil, driverErr("delete_file", err)
	}
	return &action.Result{}, nil
}

func registerFile(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "open_file", Category: action.CategoryFile, Handler: openFile, RequiredParams: []string{"path"}, RequiresDriver: true},
		{Name: "save_file", Category: action.CategoryFile, Handler: saveFile, RequiresDriver: true},
		{Name: "save_as", Category: action.CategoryFile, Handler: saveAs, OptionalParams: []string{"path"}, RequiresDriver: true},
		{Name: "open_file_dialog", Category: action.CategoryFile, Handler: openFileDialog, RequiresDriver: true},
		{Name: "create_folder", Category: action.CategoryFile, Handler: createFolder, RequiredParams: []string{"path"}, RequiresDriver: true},
		{Name: "delete_file", Category: action.CategoryFile, Handler: deleteFile, RequiredParams: []string{"path"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
