package handlers

import (
	"context"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

func lockScreen(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.Lock(ctx); err != nil {
		return nil, driverErr("lock_screen", err)
	}
	return &action.Result{}, nil
}

func sleepSystem(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.Sleep(ctx); err != nil {
		return nil, driverErr("sleep_system", err)
	}
	return &action.Result{}, nil
}

func shutdownSystem(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.Shutdown(ctx); err != nil {
		return nil, driverErr("shutdown_system", err)
	}
	return &action.Result{}, nil
}

func restartSystem(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.Restart(ctx); err != nil {
		return nil, driverErr("restart_system", err)
	}
	return &action.Result{}, nil
}

func volumeUp(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.VolumeUp(ctx); err != nil {
		return nil, driverErr("volume_up", err)
	}
	return &action.Result{}, nil
}

func volumeDown(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.VolumeDown(ctx); err != nil {
		return nil, driverErr("volume_down", err)
	}
	return &action.Result{}, nil
}

func volumeMute(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	if err := deps.Driver.VolumeMute(ctx); err != nil {
		return nil, driverErr("volume_mute", err)
	}
	return &action.Result{}, nil
}

func registerSystem(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "lock_screen", Category: action.CategorySystem, Handler: lockScreen, RequiresDriver: true},
		{Name: "sleep_system", Category: action.CategorySystem, Handler: sleepSystem, RequiresDriver: true},
		{Name: "shutdown_system", Category: action.CategorySystem, Handler: shutdownSystem, RequiresDriver: true},
		{Name: "restart_system", Category: action.CategorySystem, Handler: restartSystem, RequiresDriver: true},
		{Name: "volume_up", Category: action.CategorySystem, Handler: volumeUp, RequiresDriver: true},
		{Name: "volume_down", Category: action.CategorySystem, Handler: volumeDown, RequiresDriver: true},
		{Name: "volume_mute", Category: action.CategorySystem, Handler: volumeMute, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
