package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func clipboardCopy(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "c"}); err != nil {
		return nil, driverErr("copy", err)
	}
	return &action.Result{}, nil
}

func clipboardPaste(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "v"}); err != nil {
		return nil, driverErr("paste", err)
	}
	return &action.Result{}, nil
}

func clipboardCut(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "x"}); err != nil {
		return nil, driverErr("cut", err)
	}
	return &action.Result{}, nil
}

func getClipboard(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	text, err := deps.Driver.GetClipboard(ctx)
	if err != nil {
		return nil, driverErr("get_clipboard", err)
	}
	return &action.Result{Outputs: map[string]any{"text": text}}, nil
}

func setClipboard(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.SetClipboard(ctx, text); err != nil {
		return nil, driverErr("set_clipboard", err)
	}
	return &action.Result{}, nil
}

// pasteFromClipboard differs from paste: it reads the clipboard value and
// types it directly, rather than sending the OS paste shortcut. Useful
// inside apps that intercept or disable native paste.
func pasteFromClipboard(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	text, err := deps.Driver.GetClipboard(ctx)
	if err != nil {
		return nil, driverErr("paste_from_clipboard", err)
	}
	if err := deps.Driver.TypeText(ctx, text); err != nil {
		return nil, driverErr("paste_from_clipboard", err)
	}
	return &action.Result{}, nil
}

func registerClipboard(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "copy", Category: action.CategoryClipboard, Handler: clipboardCopy, RequiresDriver: true},
		{Name: "paste", Category: action.CategoryClipboard, Handler: clipboardPaste, RequiresDriver: true},
		{Name: "cut", Category: action.CategoryClipboard, Handler: clipboardCut, RequiresDriver: true},
		{Name: "get_clipboard", Category: action.CategoryClipboard, Handler: getClipboard, OutputKeys: []string{"text"}, RequiresDriver: true},
		{Name: "set_clipboard", Category: action.CategoryClipboard, Handler: setClipboard, RequiredParams: []string{"text"}, RequiresDriver: true},
		{Name: "paste_from_clipboard", Category: action.CategoryClipboard, Handler: pasteFromClipboard, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
