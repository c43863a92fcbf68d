package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

// Browser navigation has no dedicated driver primitive: it is composed
// from the same keyboard/URL primitives a human would use, following the
// conventional shortcut bindings shared by the major desktop browsers.

func openURL(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	if err := deps.Driver.OpenURL(ctx, url); err != nil {
		return nil, driverErr("open_url", err)
	}
	return &action.Result{}, nil
}

func browserShortcut(name string, keys []string) action.Handler {
	return func(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
		if err := deps.Driver.KeyShortcut(ctx, keys); err != nil {
			return nil, driverErr(name, err)
		}
		return &action.Result{}, nil
	}
}

func browserRefresh(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyPress(ctx, "f5"); err != nil {
		return nil, driverErr("browser_refresh", err)
	}
	return &action.Result{}, nil
}

func browserAddressBar(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "l"}); err != nil {
		return nil, driverErr("browser_address_bar", err)
	}
	text := optionalStringParam(params, "text", "")
	if text == "" {
		return &action.Result{}, nil
	}
	if err := deps.Driver.TypeText(ctx, text); err != nil {
		return nil, driverErr("browser_address_bar", err)
	}
	if err := deps.Driver.KeyPress(ctx, "enter"); err != nil {
		return nil, driverErr("browser_address_bar", err)
	}
	return &action.Result{}, nil
}

func browserFind(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.KeyShortcut(ctx, []string{"ctrl", "f"}); err != nil {
		return nil, driverErr("browser_find", err)
	}
	query := optionalStringParam(params, "query", "")
	if query == "" {
		return &action.Result{}, nil
	}
	if err := deps.Driver.TypeText(ctx, query); err != nil {
		return nil, driverErr("browser_find", err)
	}
	return &action.Result{}, nil
}

func registerBrowser(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "open_url", Category: action.CategoryBrowser, Handler: openURL, RequiredParams: []string{"url"}, RequiresDriver: true},
		{Name: "browser_back", Category: action.CategoryBrowser, Handler: browserShortcut("browser_back", []string{"alt", "left"}), RequiresDriver: true},
		{Name: "browser_forward", Category: action.CategoryBrowser, Handler: browserShortcut("browser_forward", []string{"alt", "right"}), RequiresDriver: true},
		{Name: "browser_refresh", Category: action.CategoryBrowser, Handler: browserRefresh, RequiresDriver: true},
		{Name: "browser_new_tab", Category: action.CategoryBrowser, Handler: browserShortcut("browser_new_tab", []string{"ctrl", "t"}), RequiresDriver: true},
		{Name: "browser_close_tab", Category: action.CategoryBrowser, Handler: browserShortcut("browser_close_tab", []string{"ctrl", "w"}), RequiresDriver: true},
		{Name: "browser_switch_tab", Category: action.CategoryBrowser, Handler: browserShortcut("browser_switch_tab", []string{"ctrl", "tab"}), RequiresDriver: true},
		{Name: "browser_address_bar", Category: action.CategoryBrowser, Handler: browserAddressBar, OptionalParams: []string{"text"}, RequiresDriver: true},
		{Name: "browser_bookmark", Category: action.CategoryBrowser, Handler: browserShortcut("browser_bookmark", []string{"ctrl", "d"}), RequiresDriver: true},
		{Name: "browser_find", Category: action.CategoryBrowser, Handler: browserFind, OptionalParams: []string{"query"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
