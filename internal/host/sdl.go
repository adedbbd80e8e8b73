package host

import (
	"context"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/engine/audio"
	"github.com/Faultbox/rainbow-overlay/internal/engine/debug"
	"github.com/Faultbox/rainbow-overlay/internal/engine/input"
	"github.com/Faultbox/rainbow-overlay/internal/engine/renderer"
	"github.com/Faultbox/rainbow-overlay/internal/engine/title"
	"github.com/Faultbox/rainbow-overlay/internal/engine/window"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
	"github.com/Faultbox/rainbow-overlay/internal/overlay"
)

// SDL is the windowed host: an SDL2 window with an OpenGL 4.1 context.
type SDL struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	overlay  *overlay.Overlay
	title    *title.Title
	cue      *audio.Manager
	shots    *debug.ScreenshotCapture
}

// NewSDL opens the window and builds the overlay on the GL backend.
// A missing context is returned as window.ErrContextUnavailable.
func NewSDL(cfg *config.Config, plan *Plan) (*SDL, error) {
	logger.Info("initializing overlay window",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	s := &SDL{
		cfg:   cfg,
		input: input.New(),
		title: plan.NewTitle(),
		shots: debug.NewScreenshotCapture(cfg.Host.ScreenshotDir, "overlay"),
	}

	// Create window (this also creates OpenGL context)
	var err error
	s.window, err = window.New(window.Config{
		Title:      plan.Title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The overlay works in drawable pixels, which differ from window
	// points on high-DPI displays.
	oc := plan.Overlay
	oc.Width, oc.Height = s.window.DrawableSize()

	s.cue = newCue(cfg.Audio)

	// Create renderer (AFTER window, since OpenGL context must exist)
	s.renderer = renderer.New()
	s.overlay, err = overlay.New(oc, s.renderer, options(s.title, s.cue, plan)...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create overlay: %w", err)
	}

	logger.Info("overlay window initialized")
	return s, nil
}

// Run starts the render loop. It returns when the transition completes,
// the window is closed or ctx ends.
func (s *SDL) Run(ctx context.Context) error {
	s.running = true

	// Timing
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	var frameBudget time.Duration
	if s.cfg.Graphics.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(s.cfg.Graphics.FPSLimit)
	}

	logger.Info("starting render loop")

	for s.running {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Calculate delta time
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		// 1. Process input
		if s.input.Update() {
			// Quit event received
			s.running = false
			break
		}
		s.handleEvents()
		if !s.running {
			break
		}

		// 2. Advance and render
		more, err := s.overlay.Tick(dt)
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		// 3. Present (swap buffers)
		s.window.SwapBuffers()

		if !more {
			s.window.Hide()
			s.running = false
			break
		}

		// FPS counter
		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("dt", fmt.Sprintf("%.2fms", dt*1000)),
			)
			frameCount = 0
			fpsTimer = time.Now()
		}

		if frameBudget > 0 {
			if spent := time.Since(now); spent < frameBudget {
				time.Sleep(frameBudget - spent)
			}
		}
	}

	return nil
}

func (s *SDL) handleEvents() {
	for _, event := range s.input.Events() {
		if event.Type == input.EventWindowResize {
			s.overlay.OnResize(s.window.DrawableSize())
		}
	}

	if s.input.IsKeyPressed(sdl.SCANCODE_ESCAPE) {
		s.running = false
	}
	if s.input.IsKeyPressed(sdl.SCANCODE_RETURN) || s.input.IsKeyPressed(sdl.SCANCODE_SPACE) {
		s.overlay.OnDismiss()
	}
	if s.input.IsKeyPressed(sdl.SCANCODE_F12) {
		s.screenshot()
	}

	for _, p := range s.input.Clicks() {
		x, y := s.toDrawable(p[0], p[1])
		if s.title != nil && s.title.Contains(x, y) {
			s.overlay.OnDismiss()
		}
	}
}

// toDrawable converts window coordinates to drawable pixels.
func (s *SDL) toDrawable(x, y int) (int, int) {
	ww, wh := s.window.GetSize()
	dw, dh := s.window.DrawableSize()
	if ww <= 0 || wh <= 0 {
		return x, y
	}
	return x * dw / ww, y * dh / wh
}

func (s *SDL) screenshot() {
	pixels, w, h := s.renderer.ReadPixels()
	path, err := s.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

// Close cleans up overlay resources.
func (s *SDL) Close() {
	logger.Info("closing overlay window")

	if s.overlay != nil {
		s.overlay.Dispose()
	}
	if s.cue != nil {
		s.cue.Close()
	}
	if s.window != nil {
		s.window.Close()
	}
}
