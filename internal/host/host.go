// Package host drives an overlay from a real surface: an SDL window with an
// OpenGL context, a terminal, or nothing at all.
package host

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/assets"
	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/engine/audio"
	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/particles"
	"github.com/Faultbox/rainbow-overlay/internal/engine/renderer"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shader"
	"github.com/Faultbox/rainbow-overlay/internal/engine/title"
	"github.com/Faultbox/rainbow-overlay/internal/engine/window"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
	"github.com/Faultbox/rainbow-overlay/internal/overlay"
	"github.com/Faultbox/rainbow-overlay/pkg/math"
)

// TitleColor is the colour of the clickable title.
var TitleColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// scenes is shared by every Prepare so a scene file is parsed once per
// process.
var scenes = assets.NewManager()

// Host runs one overlay until it completes, the user quits or ctx ends.
type Host interface {
	Run(ctx context.Context) error
	Close()
}

// Plan is the resolved overlay configuration plus the title text.
type Plan struct {
	Overlay    overlay.Config
	Title      string
	TitleScale int
}

// New builds the host selected by cfg.Host.Mode.
func New(ctx context.Context, cfg *config.Config) (Host, error) {
	plan, err := Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var h Host
	switch cfg.Host.Mode {
	case config.ModeHeadless:
		h, err = NewHeadless(cfg, plan)
	case config.ModeTerm:
		h, err = NewTerm(cfg, plan, nil)
	case config.ModeSDL:
		h, err = NewSDL(cfg, plan)
		if glUnavailable(err) {
			h, err = fallbackToTerm(cfg, plan, nil, err)
		}
	default:
		err = fmt.Errorf("unknown host mode %q", cfg.Host.Mode)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// glUnavailable reports whether err rules out the GL backend while leaving
// the terminal usable.
func glUnavailable(err error) bool {
	return errors.Is(err, window.ErrContextUnavailable) ||
		errors.Is(err, renderer.ErrUnavailable) ||
		errors.Is(err, shader.ErrCompile) ||
		errors.Is(err, shader.ErrLink)
}

// fallbackToTerm replaces a failed SDL host with the terminal one. The
// terminal owns stdout, so logging moves to the log file (or off) first.
func fallbackToTerm(cfg *config.Config, plan *Plan, screen tcell.Screen, cause error) (*Term, error) {
	if err := logger.InitForTerminal(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("terminal logger: %w", err)
	}
	logger.Warn("GL backend unavailable, falling back to the terminal", zap.Error(cause))
	return NewTerm(cfg, plan, screen)
}

// Prepare resolves cfg into a Plan. A configured scene file is loaded
// asynchronously; if it cannot be loaded the overlay falls back to the flat
// fill instead of failing.
func Prepare(ctx context.Context, cfg *config.Config) (*Plan, error) {
	oc, err := OverlayConfig(cfg)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Overlay:    oc,
		Title:      cfg.Overlay.Title,
		TitleScale: cfg.Overlay.TitleScale,
	}

	if cfg.Overlay.SceneFile == "" {
		return plan, nil
	}

	res := assets.Await(scenes.Load(ctx, cfg.Overlay.SceneFile))
	hits, misses := scenes.Stats()
	logger.Debug("scene cache", zap.Int("hits", hits), zap.Int("misses", misses))
	if !res.Ready() {
		plan.Overlay.Flat = true
		return plan, nil
	}
	if err := plan.apply(res.Scene); err != nil {
		logger.Warn("scene rejected, using flat fill", zap.Error(err))
		plan.Overlay.Flat = true
	}
	return plan, nil
}

// OverlayConfig maps the file/flag configuration onto overlay.Config.
func OverlayConfig(cfg *config.Config) (overlay.Config, error) {
	kind, err := mesh.ParseKind(cfg.Overlay.Mesh)
	if err != nil {
		return overlay.Config{}, err
	}
	policy, err := scene.ParsePolicy(cfg.Transition.Policy)
	if err != nil {
		return overlay.Config{}, err
	}

	o := cfg.Overlay
	pc := particles.DefaultConfig()
	pc.Count = o.Particles
	if o.ParticleRadius > 0 {
		pc.Radius = o.ParticleRadius
	}

	oc := overlay.DefaultConfig()
	oc.Mesh = kind
	oc.Segments = o.Segments
	oc.YScale = o.YScale
	oc.Flat = o.Flat
	oc.FovY = o.FOV
	oc.Near = o.Near
	oc.Far = o.Far
	oc.Distance = o.Distance
	oc.SpinX = o.SpinX
	oc.SpinY = o.SpinY
	oc.GlowIntensity = o.GlowIntensity
	oc.GlowBias = o.GlowBias
	oc.LightDir = math.Vec3{X: o.LightDirection[0], Y: o.LightDirection[1], Z: o.LightDirection[2]}
	oc.Lit = o.Lit
	oc.Bloom = scene.Bloom{Enabled: o.Bloom, Kernel: o.BloomKernel, Scale: o.BloomScale}
	oc.Particles = pc
	oc.PointSize = o.PointSize
	oc.Transition = overlay.TransitionConfig{
		Policy:        policy,
		Duration:      cfg.Transition.Duration,
		FrameStep:     cfg.Transition.FrameStep,
		CloseDistance: cfg.Transition.CloseDistance,
	}
	oc.Width = cfg.Graphics.Width
	oc.Height = cfg.Graphics.Height
	return oc, nil
}

// apply overrides the plan with the non-zero fields of a scene.
func (p *Plan) apply(s *assets.Scene) error {
	if s.Mesh != "" {
		kind, err := mesh.ParseKind(s.Mesh)
		if err != nil {
			return err
		}
		p.Overlay.Mesh = kind
	}
	if s.Transition != "" {
		policy, err := scene.ParsePolicy(s.Transition)
		if err != nil {
			return err
		}
		p.Overlay.Transition.Policy = policy
	}
	if s.Segments > 0 {
		p.Overlay.Segments = s.Segments
	}
	if s.YScale > 0 {
		p.Overlay.YScale = s.YScale
	}
	if s.Particles > 0 {
		p.Overlay.Particles.Count = s.Particles
	}
	if s.GlowIntensity > 0 {
		p.Overlay.GlowIntensity = s.GlowIntensity
	}
	if s.Title != "" {
		p.Title = s.Title
	}
	return nil
}

// NewTitle rasterises the plan's title, or returns nil when it is empty.
func (p *Plan) NewTitle() *title.Title {
	if p.Title == "" {
		return nil
	}
	return title.New(p.Title, p.TitleScale, TitleColor)
}

// newCue opens the speaker for the dismiss sound. Audio is optional: any
// failure is logged and the overlay runs silent.
func newCue(cfg config.AudioConfig) *audio.Manager {
	if !cfg.Enabled {
		return nil
	}

	m := audio.New()
	if err := m.Init(); err != nil {
		logger.Warn("audio unavailable, dismiss cue disabled", zap.Error(err))
		return nil
	}
	m.SetMasterVolume(float64(cfg.MasterVolume))
	m.SetCueVolume(float64(cfg.CueVolume))
	logger.Debug("dismiss cue ready",
		zap.Float64("master_volume", m.GetMasterVolume()),
		zap.Float64("cue_volume", m.GetCueVolume()),
	)

	if cfg.CueFile != "" {
		data, err := os.ReadFile(cfg.CueFile)
		if err == nil {
			err = m.LoadCue(data)
		}
		if err != nil {
			logger.Warn("dismiss cue not loaded, using sweep",
				zap.String("path", cfg.CueFile),
				zap.Error(err),
			)
		}
	}
	return m
}

// options wires the title and the dismiss cue into an overlay.
func options(t *title.Title, cue *audio.Manager, plan *Plan) []overlay.Option {
	var opts []overlay.Option
	if t != nil {
		opts = append(opts, overlay.WithLabels(t.Labels))
	}
	if cue != nil {
		d := plan.Overlay.Transition.Duration
		opts = append(opts, overlay.OnDismissed(func() {
			if err := cue.PlayDismiss(d); err != nil {
				logger.Warn("dismiss cue failed", zap.Error(err))
			}
		}))
	}
	return opts
}
