package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	countdownTicks = 3
	tickInterval   = time.Second
)

// Handle is one scoped device acquisition. It must be released exactly once
// on every exit path; Release is idempotent so defer-style cleanup is safe.
// A release may race a countdown in flight, so the released flag is guarded.
type Handle struct {
	device   Device
	fallback bool

	mu       sync.Mutex
	released bool
}

func (h *Handle) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released
}

// release marks the handle released and reports whether this call was the
// one that did it.
func (h *Handle) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	return true
}

// Fallback reports whether this acquisition fell back to the simulated
// device because the real one was unavailable.
func (h *Handle) Fallback() bool { return h.fallback }

// Controller owns the capture device lifecycle and turns a raw frame into a
// base64 photo payload. The countdown sleep is injectable so tests can run
// the 3-tick countdown without real time passing.
type Controller struct {
	device   Device
	fallback Device
	ticks    int
	tick     time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

func NewController(device Device, log zerolog.Logger) *Controller {
	return &Controller{
		device:   device,
		fallback: NewSimulatedDevice(),
		ticks:    countdownTicks,
		tick:     tickInterval,
		sleep:    sleepCtx,
		log:      log.With().Str("component", "capture").Logger(),
	}
}

// WithCountdown overrides the countdown length and tick interval.
func (c *Controller) WithCountdown(ticks int, interval time.Duration) *Controller {
	if ticks >= 0 {
		c.ticks = ticks
	}
	if interval > 0 {
		c.tick = interval
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Begin acquires the capture device. Device unavailability is not an error:
// the controller switches to the simulated fallback and the returned handle
// reports Fallback() true so the UI can say so.
func (c *Controller) Begin(ctx context.Context) (*Handle, error) {
	if c.device != nil {
		err := c.device.Open(ctx)
		if err == nil {
			return &Handle{device: c.device}, nil
		}
		if !errors.Is(err, ErrDeviceUnavailable) {
			return nil, fmt.Errorf("failed to open capture device: %w", err)
		}
		c.log.Warn().Err(err).Msg("capture device unavailable, using simulated fallback")
	}

	if err := c.fallback.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open fallback device: %w", err)
	}
	return &Handle{device: c.fallback, fallback: true}, nil
}

// Trigger runs the fixed countdown, then samples exactly one frame and
// returns it base64-encoded. The frame is never sampled before all ticks
// have elapsed.
func (c *Controller) Trigger(ctx context.Context, h *Handle) (string, error) {
	if h == nil || !h.active() {
		return "", fmt.Errorf("capture handle is not active")
	}

	for remaining := c.ticks; remaining > 0; remaining-- {
		c.log.Debug().Int("remaining", remaining).Msg("capture countdown")
		if err := c.sleep(ctx, c.tick); err != nil {
			return "", err
		}
	}

	// The handle may have been released mid-countdown by a kiosk reset.
	if !h.active() {
		return "", fmt.Errorf("capture handle is not active")
	}

	frame, err := h.device.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(frame), nil
}

// Release returns the device. Safe to call more than once and on nil; only
// the first call actually closes the device.
func (c *Controller) Release(h *Handle) {
	if h == nil || !h.release() {
		return
	}
	if err := h.device.Close(); err != nil {
		c.log.Warn().Err(err).Msg("failed to close capture device")
	}
}

// Retake releases the previous acquisition and starts a fresh one, so a
// retake never leaks the earlier handle.
func (c *Controller) Retake(ctx context.Context, h *Handle) (*Handle, error) {
	c.Release(h)
	return c.Begin(ctx)
}
