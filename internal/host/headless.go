package host

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/engine/debug"
	"github.com/Faultbox/rainbow-overlay/internal/engine/soft"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
	"github.com/Faultbox/rainbow-overlay/internal/overlay"
)

// Stats summarises a headless run.
type Stats struct {
	Ticks    uint64
	Elapsed  float64
	State    overlay.State
	Snapshot string
}

// Headless drives the overlay without a window, using the software
// renderer and a fixed delta per tick.
type Headless struct {
	cfg      config.HostConfig
	renderer *soft.Renderer
	overlay  *overlay.Overlay
	stats    Stats
}

// NewHeadless creates the overlay on a software surface.
func NewHeadless(cfg *config.Config, plan *Plan) (*Headless, error) {
	h := &Headless{
		cfg:      cfg.Host,
		renderer: soft.New(),
	}

	var opts []overlay.Option
	if t := plan.NewTitle(); t != nil {
		opts = append(opts, overlay.WithLabels(t.Labels))
	}

	ov, err := overlay.New(plan.Overlay, h.renderer, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating overlay: %w", err)
	}
	h.overlay = ov
	return h, nil
}

// Run ticks until the transition completes or the tick limit is reached.
// Hz <= 0 runs unpaced.
func (h *Headless) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if h.cfg.Hz > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / h.cfg.Hz))
		defer t.Stop()
		tick = t.C
	}

	logger.Info("headless run starting",
		zap.Float64("hz", h.cfg.Hz),
		zap.Float64("delta", h.cfg.Delta),
		zap.Int("ticks", h.cfg.Ticks),
		zap.Int("dismiss_after", h.cfg.DismissAfter),
	)

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if h.cfg.DismissAfter > 0 && h.overlay.Ticks() >= uint64(h.cfg.DismissAfter) {
			h.overlay.OnDismiss()
		}

		more, err := h.overlay.Tick(h.cfg.Delta)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if h.cfg.Ticks > 0 && h.overlay.Ticks() >= uint64(h.cfg.Ticks) {
			break
		}
	}

	h.stats = Stats{
		Ticks:   h.overlay.Ticks(),
		Elapsed: h.overlay.Elapsed(),
		State:   h.overlay.State(),
	}

	if h.cfg.Snapshot != "" {
		if err := debug.WritePNG(h.cfg.Snapshot, h.renderer.Image()); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		h.stats.Snapshot = h.cfg.Snapshot
	}

	logger.Info("headless run finished",
		zap.Uint64("ticks", h.stats.Ticks),
		zap.Float64("elapsed", h.stats.Elapsed),
		zap.String("state", h.stats.State.String()),
	)
	return nil
}

// Stats returns the result of the last Run.
func (h *Headless) Stats() Stats {
	return h.stats
}

// Overlay returns the driven overlay.
func (h *Headless) Overlay() *overlay.Overlay {
	return h.overlay
}

// Close disposes the overlay.
func (h *Headless) Close() {
	if h.overlay != nil {
		h.overlay.Dispose()
	}
}
