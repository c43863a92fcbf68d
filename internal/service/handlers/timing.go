package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

func delay(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	ms := optionalIntParam(params, "ms", 0)
	if ms <= 0 {
		return &action.Result{}, nil
	}
	select {
	case <-ctx.Done():
		return nil, apperr.New(apperr.Cancelled, "delay cancelled")
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
	return &action.Result{}, nil
}

func pollUntil(ctx context.Context, timeoutMs, pollMs int, check func() (bool, error)) (bool, error) {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	if pollMs <= 0 {
		pollMs = 200
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		ok, err := check()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, apperr.New(apperr.Cancelled, "wait cancelled")
		case <-time.After(time.Duration(pollMs) * time.Millisecond):
		}
	}
}

func waitForWindow(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	title, err := stringParam(params, "title")
	if err != nil {
		return nil, err
	}
	timeoutMs := optionalIntParam(params, "timeout_ms", 5000)
	pollMs := optionalIntParam(params, "poll_interval_ms", 200)

	found, err := pollUntil(ctx, timeoutMs, pollMs, func() (bool, error) {
		active, err := deps.Driver.ActiveWindow(ctx)
		if err != nil {
			return false, driverErr("wait_for_window", err)
		}
		return strings.Contains(strings.ToLower(active), strings.ToLower(title)), nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.Newf(apperr.Timeout, "window %q did not appear within %dms", title, timeoutMs)
	}
	return &action.Result{}, nil
}

// waitForColor samples a single pixel by capturing a 1x1 region at (x, y)
// and comparing it against an "#RRGGBB" target within a per-channel
// tolerance.
func waitForColor(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	x, err := intParam(params, "x")
	if err != nil {
		return nil, err
	}
	y, err := intParam(params, "y")
	if err != nil {
		return nil, err
	}
	target, err := stringParam(params, "color")
	if err != nil {
		return nil, err
	}
	tr, tg, tb, err := parseHexColor(target)
	if err != nil {
		return nil, apperr.Newf(apperr.MalformedAction, "wait_for_color: %v", err)
	}
	tolerance := optionalIntParam(params, "tolerance", 10)
	timeoutMs := optionalIntParam(params, "timeout_ms", 5000)
	pollMs := optionalIntParam(params, "poll_interval_ms", 200)

	found, err := pollUntil(ctx, timeoutMs, pollMs, func() (bool, error) {
		raw, err := deps.Driver.CaptureRegion(ctx, x, y, 1, 1)
		if err != nil {
			return false, driverErr("wait_for_color", err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return false, apperr.Wrap(apperr.DriverFailure, "wait_for_color: decoding captured region", err)
		}
		r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
		return withinTolerance(int(r>>8), tr, tolerance) &&
			withinTolerance(int(g>>8), tg, tolerance) &&
			withinTolerance(int(b>>8), tb, tolerance), nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.Newf(apperr.Timeout, "color %s not observed at (%d,%d) within %dms", target, x, y, timeoutMs)
	}
	return &action.Result{}, nil
}

// waitForImage polls a full-screen capture for an exact occurrence of a
// small reference template, using a brute-force pixel scan. Intended for
// small, low-resolution templates; there is no perceptual/fuzzy matching.
func waitForImage(ctx context.Context, deps action.Deps, params map[string]any) (*action.Result, error) {
	templateB64, err := stringParam(params, "image_b64")
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(templateB64)
	if err != nil {
		return nil, apperr.Newf(apperr.MalformedAction, "wait_for_image: invalid image_b64: %v", err)
	}
	template, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperr.Newf(apperr.MalformedAction, "wait_for_image: undecodable template: %v", err)
	}
	timeoutMs := optionalIntParam(params, "timeout_ms", 10000)
	pollMs := optionalIntParam(params, "poll_interval_ms", 500)

	var foundX, foundY int
	found, err := pollUntil(ctx, timeoutMs, pollMs, func() (bool, error) {
		screenJPEG, _, _, err := deps.Driver.CaptureScreen(ctx)
		if err != nil {
			return false, driverErr("wait_for_image", err)
		}
		screen, _, err := image.Decode(bytes.NewReader(screenJPEG))
		if err != nil {
			return false, apperr.Wrap(apperr.DriverFailure, "wait_for_image: decoding screen capture", err)
		}
		x, y, ok := findSubimage(screen, template)
		if ok {
			foundX, foundY = x, y
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.Newf(apperr.Timeout, "image template not found within %dms", timeoutMs)
	}
	return &action.Result{Outputs: map[string]any{"x": foundX, "y": foundY}}, nil
}

func findSubimage(screen, template image.Image) (x, y int, ok bool) {
	sb, tb := screen.Bounds(), template.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	tw, th := tb.Dx(), tb.Dy()
	if tw == 0 || th == 0 || tw > sw || th > sh {
		return 0, 0, false
	}
	for oy := 0; oy <= sh-th; oy++ {
		for ox := 0; ox <= sw-tw; ox++ {
			if matchesAt(screen, template, sb.Min.X+ox, sb.Min.Y+oy) {
				return sb.Min.X + ox, sb.Min.Y + oy, true
			}
		}
	}
	return 0, 0, false
}

func matchesAt(screen, template image.Image, ox, oy int) bool {
	tb := template.Bounds()
	for ty := tb.Min.Y; ty < tb.Max.Y; ty++ {
		for tx := tb.Min.X; tx < tb.Max.X; tx++ {
			sr, sg, sb, _ := screen.At(ox+tx-tb.Min.X, oy+ty-tb.Min.Y).RGBA()
			tr, tg, tb2, _ := template.At(tx, ty).RGBA()
			if sr>>8 != tr>>8 || sg>>8 != tg>>8 || sb>>8 != tb2>>8 {
				return false
			}
		}
	}
	return true
}

func parseHexColor(s string) (r, g, b int, err error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, apperr.Newf(apperr.MalformedAction, "color %q must be #RRGGBB", s)
	}
	var vals [3]int
	for i := 0; i < 3; i++ {
		n, convErr := hexByte(s[i*2 : i*2+2])
		if convErr != nil {
			return 0, 0, 0, convErr
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], nil
}

func hexByte(s string) (int, error) {
	n := 0
	for _, c := range s {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= int(c - '0')
		case c >= 'a' && c <= 'f':
			n |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n |= int(c-'A') + 10
		default:
			return 0, apperr.Newf(apperr.MalformedAction, "invalid hex digit %q", c)
		}
	}
	return n, nil
}

func withinTolerance(a, b, tolerance int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func registerTiming(reg action.Registry) error {
	entries := []action.Entry{
		{Name: "delay", Category: action.CategoryTiming, Handler: delay, OptionalParams: []string{"ms"}},
		{Name: "wait_for_window", Category: action.CategoryTiming, Handler: waitForWindow, RequiredParams: []string{"title"}, OptionalParams: []string{"timeout_ms", "poll_interval_ms"}, RequiresDriver: true},
		{Name: "wait_for_image", Category: action.CategoryTiming, Handler: waitForImage, RequiredParams: []string{"image_b64"}, OptionalParams: []string{"timeout_ms", "poll_interval_ms"}, OutputKeys: []string{"x", "y"}, RequiresDriver: true},
		{Name: "wait_for_color", Category: action.CategoryTiming, Handler: waitForColor, RequiredParams: []string{"x", "y", "color"}, OptionalParams: []string{"tolerance", "timeout_ms", "poll_interval_ms"}, RequiresDriver: true},
	}
	return registerAll(reg, entries)
}
