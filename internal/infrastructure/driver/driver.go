// Package driver implements action.Driver: the platform actuation
// boundary. Concrete OS automation (robotgo-style mouse/keyboard/window
// control) is out of scope for this repo (spec §9 design notes: OS
// actuation primitives are a platform driver interface); what ships here
// is a reference implementation that is real where a corpus library
// exists (clipboard via atotto/clipboard) and a documented, logged no-op
// everywhere else, so the executor and its handlers are exercisable and
// testable end-to-end without a physical display.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

// Reference is the headless reference action.Driver implementation.
// 无显示环境下可运行的参考驱动，除剪贴板外均为带日志的空操作。
type Reference struct {
	mu     sync.Mutex
	logger *zap.Logger

	mouseX, mouseY int
	screenW, screenH int
	activeWindow   string
	heldKeys       map[string]bool
}

// New creates a Reference driver with the given virtual screen size.
func New(logger *zap.Logger, screenW, screenH int) *Reference {
	if screenW <= 0 {
		screenW = 1920
	}
	if screenH <= 0 {
		screenH = 1080
	}
	return &Reference{
		logger:   logger,
		screenW:  screenW,
		screenH:  screenH,
		heldKeys: make(map[string]bool),
	}
}

func (r *Reference) log(action string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Debug("driver call", append([]zap.Field{zap.String("action", action)}, fields...)...)
	}
}

func (r *Reference) MouseMove(ctx context.Context, x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mouseX, r.mouseY = x, y
	r.log("mouse_move", zap.Int("x", x), zap.Int("y", y))
	return nil
}

func (r *Reference) MouseClick(ctx context.Context, x, y int, button string) error {
	if err := r.MouseMove(ctx, x, y); err != nil {
		return err
	}
	r.log("mouse_click", zap.Int("x", x), zap.Int("y", y), zap.String("button", button))
	return nil
}

func (r *Reference) MouseDoubleClick(ctx context.Context, x, y int) error {
	return r.MouseClick(ctx, x, y, "left")
}

func (r *Reference) MouseDrag(ctx context.Context, fromX, fromY, toX, toY int) error {
	if err := r.MouseMove(ctx, fromX, fromY); err != nil {
		return err
	}
	return r.MouseMove(ctx, toX, toY)
}

func (r *Reference) MouseScroll(ctx context.Context, dx, dy int) error {
	r.log("mouse_scroll", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

func (r *Reference) MousePosition(ctx context.Context) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mouseX, r.mouseY, nil
}

func (r *Reference) KeyPress(ctx context.Context, key string) error {
	r.log("key_press", zap.String("key", key))
	return nil
}

func (r *Reference) KeyShortcut(ctx context.Context, keys []string) error {
	r.log("key_shortcut", zap.Strings("keys", keys))
	return nil
}

func (r *Reference) TypeText(ctx context.Context, text string) error {
	r.log("type_text", zap.Int("len", len(text)))
	return nil
}

func (r *Reference) TypeTextWithDelay(ctx context.Context, text string, delayMs int) error {
	r.log("type_text_with_delay", zap.Int("len", len(text)), zap.Int("delay_ms", delayMs))
	return nil
}

func (r *Reference) HoldKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heldKeys[key] = true
	return nil
}

func (r *Reference) ReleaseKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.heldKeys, key)
	return nil
}

func (r *Reference) OpenApp(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeWindow = name
	r.log("open_app", zap.String("name", name))
	return nil
}

func (r *Reference) CloseApp(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeWindow == name {
		r.activeWindow = ""
	}
	r.log("close_app", zap.String("name", name))
	return nil
}

func (r *Reference) SwitchWindow(ctx context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeWindow = title
	return nil
}

func (r *Reference) MinimizeWindow(ctx context.Context, title string) error {
	r.log("minimize_window", zap.String("title", title))
	return nil
}

func (r *Reference) MaximizeWindow(ctx context.Context, title string) error {
	r.log("maximize_window", zap.String("title", title))
	return nil
}

func (r *Reference) RestoreWindow(ctx context.Context, title string) error {
	r.log("restore_window", zap.String("title", title))
	return nil
}

func (r *Reference) ActiveWindow(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeWindow, nil
}

func (r *Reference) GetClipboard(ctx context.Context) (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", apperr.Wrap(apperr.DriverFailure, "reading clipboard", err)
	}
	return text, nil
}

func (r *Reference) SetClipboard(ctx context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return apperr.Wrap(apperr.DriverFailure, "writing clipboard", err)
	}
	return nil
}

// CaptureScreen renders a flat placeholder frame at the configured
// virtual screen size, JPEG-encoded — the reference driver has no real
// display to capture.
func (r *Reference) CaptureScreen(ctx context.Context) ([]byte, int, int, error) {
	r.mu.Lock()
	w, h := r.screenW, r.screenH
	r.mu.Unlock()
	data, err := encodeSolidJPEG(w, h, color.RGBA{R: 32, G: 32, B: 32, A: 255})
	return data, w, h, err
}

func (r *Reference) CaptureRegion(ctx context.Context, x, y, w, h int) ([]byte, error) {
	data, err := encodeSolidJPEG(w, h, color.RGBA{R: 32, G: 32, B: 32, A: 255})
	return data, err
}

func (r *Reference) ScreenSize(ctx context.Context) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screenW, r.screenH, nil
}

func (r *Reference) OpenURL(ctx context.Context, url string) error {
	r.log("open_url", zap.String("url", url))
	return nil
}

func (r *Reference) OpenFile(ctx context.Context, path string) error {
	r.log("open_file", zap.String("path", path))
	return nil
}

func (r *Reference) CreateFolder(ctx context.Context, path string) error {
	r.log("create_folder", zap.String("path", path))
	return nil
}

func (r *Reference) DeleteFile(ctx context.Context, path string) error {
	r.log("delete_file", zap.String("path", path))
	return nil
}

func (r *Reference) Lock(ctx context.Context) error           { r.log("lock_screen"); return nil }
func (r *Reference) Sleep(ctx context.Context) error           { r.log("sleep_system"); return nil }
func (r *Reference) Shutdown(ctx context.Context) error        { r.log("shutdown_system"); return nil }
func (r *Reference) Restart(ctx context.Context) error         { r.log("restart_system"); return nil }
func (r *Reference) VolumeUp(ctx context.Context) error        { r.log("volume_up"); return nil }
func (r *Reference) VolumeDown(ctx context.Context) error      { r.log("volume_down"); return nil }
func (r *Reference) VolumeMute(ctx context.Context) error      { r.log("volume_mute"); return nil }

func encodeSolidJPEG(w, h int, c color.RGBA) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid capture dimensions %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ action.Driver = (*Reference)(nil)
