package driver

import (
	"context"
	"time"

	"github.com/ngoclaw/deskflow/internal/domain/action"
)

// SmoothMouse moves in a fixed number of eased steps along a straight
// line rather than teleporting, the "curve-based mouse controller" the
// registry injects for verification/navigation handlers that want
// human-like movement (spec §4.3).
type SmoothMouse struct {
	Steps    int
	StepWait time.Duration
}

// NewSmoothMouse returns a SmoothMouse with sane defaults.
func NewSmoothMouse() *SmoothMouse {
	return &SmoothMouse{Steps: 12, StepWait: 8 * time.Millisecond}
}

// MoveSmooth interpolates from the driver's current mouse position to
// (toX, toY) using an ease-in-out curve.
func (m *SmoothMouse) MoveSmooth(ctx context.Context, drv action.Driver, toX, toY int) error {
	fromX, fromY, err := drv.MousePosition(ctx)
	if err != nil {
		return err
	}
	steps := m.Steps
	if steps <= 0 {
		steps = 12
	}
	for i := 1; i <= steps; i++ {
		t := easeInOut(float64(i) / float64(steps))
		x := fromX + int(float64(toX-fromX)*t)
		y := fromY + int(float64(toY-fromY)*t)
		if err := drv.MouseMove(ctx, x, y); err != nil {
			return err
		}
		if i < steps && m.StepWait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.StepWait):
			}
		}
	}
	return nil
}

func easeInOut(t float64) float64 {
	return t * t * (3 - 2*t) // smoothstep
}
