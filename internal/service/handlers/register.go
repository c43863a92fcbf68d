package handlers

import (
	"fmt"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

// RegisterAll populates reg with every handler in the action library
// (spec §6.2). It mirrors the teacher's single-entry-point
// tool.RegisterAllTools registration pattern.
// 按分类依次注册全部动作处理器。
func RegisterAll(reg action.Registry) error {
	registrars := []func(action.Registry) error{
		registerKeyboard,
		registerMouse,
		registerWindow,
		registerBrowser,
		registerClipboard,
		registerFile,
		registerScreen,
		registerTiming,
		registerVision,
		registerSystem,
		registerEdit,
	}
	for _, r := range registrars {
		if err := r(reg); err != nil {
			return err
		}
	}
	return nil
}

func registerAll(reg action.Registry, entries []action.Entry) error {
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return fmt.Errorf("registering action %q: %w", e.Name, err)
		}
	}
	return nil
}

func driverErr(action string, err error) error {
	return apperr.Wrap(apperr.DriverFailure, fmt.Sprintf("%s: driver call failed", action), err)
}
