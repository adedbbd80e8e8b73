// Package config handles overlay configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
)

// MaxBloomKernel is the largest accepted overlay.bloom_kernel.
const MaxBloomKernel = 32

// Host modes.
const (
	ModeSDL      = "sdl"
	ModeTerm     = "term"
	ModeHeadless = "headless"
)

// Config holds all overlay settings.
type Config struct {
	Graphics   GraphicsConfig   `yaml:"graphics"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Transition TransitionConfig `yaml:"transition"`
	Audio      AudioConfig      `yaml:"audio"`
	Host       HostConfig       `yaml:"host"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// OverlayConfig describes the scene and its look.
type OverlayConfig struct {
	Mesh     string  `yaml:"mesh"`
	Segments int     `yaml:"segments"`
	YScale   float32 `yaml:"y_scale"`
	Flat     bool    `yaml:"flat"`

	FOV      float32 `yaml:"fov"`
	Near     float32 `yaml:"near"`
	Far      float32 `yaml:"far"`
	Distance float32 `yaml:"distance"`
	SpinX    float32 `yaml:"spin_x"`
	SpinY    float32 `yaml:"spin_y"`

	GlowIntensity  float32    `yaml:"glow_intensity"`
	GlowBias       float32    `yaml:"glow_bias"`
	LightDirection [3]float32 `yaml:"light_direction"`
	Lit            bool       `yaml:"lit"`

	Bloom       bool    `yaml:"bloom"`
	BloomKernel int     `yaml:"bloom_kernel"`
	BloomScale  float32 `yaml:"bloom_scale"`

	Particles      int     `yaml:"particles"`
	ParticleRadius float32 `yaml:"particle_radius"`
	PointSize      float32 `yaml:"point_size"`

	Title      string `yaml:"title"`
	TitleScale int    `yaml:"title_scale"`
	SceneFile  string `yaml:"scene_file"`
}

// TransitionConfig holds dismissal transition settings.
type TransitionConfig struct {
	Policy        string        `yaml:"policy"`
	Duration      time.Duration `yaml:"duration"`
	FrameStep     time.Duration `yaml:"frame_step"`
	CloseDistance float32       `yaml:"close_distance"`
}

// AudioConfig holds audio settings.
type AudioConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MasterVolume float32 `yaml:"master_volume"`
	CueVolume    float32 `yaml:"cue_volume"`
	CueFile      string  `yaml:"cue_file"`
}

// HostConfig selects and tunes the host that drives the overlay.
type HostConfig struct {
	Mode          string  `yaml:"mode"`
	Ticks         int     `yaml:"ticks"`          // headless: stop after this many ticks (0 = until complete)
	Hz            float64 `yaml:"hz"`             // tick rate for term/headless; <= 0 runs unpaced
	Delta         float64 `yaml:"delta"`          // headless: fixed seconds per tick
	DismissAfter  int     `yaml:"dismiss_after"`  // headless: dismiss at this tick (0 = never)
	Snapshot      string  `yaml:"snapshot"`       // headless: PNG of the last frame
	ScreenshotDir string  `yaml:"screenshot_dir"` // sdl/term: F12 captures
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
		},
		Overlay: OverlayConfig{
			Mesh:           "sphere",
			Segments:       64,
			YScale:         0.8,
			FOV:            75,
			Near:           0.1,
			Far:            1000,
			Distance:       3,
			SpinX:          0.1,
			SpinY:          0.3,
			GlowIntensity:  1.5,
			GlowBias:       0.6,
			LightDirection: [3]float32{1, 1, 1},
			Lit:            true,
			Bloom:          true,
			BloomKernel:    4,
			BloomScale:     2,
			Particles:      0,
			ParticleRadius: 1.6,
			PointSize:      3,
			Title:          "Click to continue",
			TitleScale:     4,
		},
		Transition: TransitionConfig{
			Policy:        "pixelate",
			Duration:      time.Second,
			FrameStep:     16 * time.Millisecond,
			CloseDistance: 1,
		},
		Audio: AudioConfig{
			Enabled:      true,
			MasterVolume: 0.8,
			CueVolume:    0.6,
		},
		Host: HostConfig{
			Mode:          ModeSDL,
			Hz:            60,
			Delta:         1.0 / 60,
			ScreenshotDir: "screenshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that would make the overlay fail later.
func (c *Config) Validate() error {
	var errs []error

	switch c.Host.Mode {
	case ModeSDL, ModeTerm, ModeHeadless:
	default:
		errs = append(errs, fmt.Errorf("host.mode: unknown mode %q", c.Host.Mode))
	}
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		errs = append(errs, fmt.Errorf("graphics: invalid size %dx%d", c.Graphics.Width, c.Graphics.Height))
	}
	if _, err := mesh.ParseKind(c.Overlay.Mesh); err != nil {
		errs = append(errs, fmt.Errorf("overlay.mesh: %w", err))
	}
	if c.Overlay.Segments < 1 {
		errs = append(errs, fmt.Errorf("overlay.segments: %w (got %d)", mesh.ErrInvalidSegments, c.Overlay.Segments))
	}
	if o := c.Overlay; o.FOV <= 0 || o.FOV >= 180 {
		errs = append(errs, fmt.Errorf("overlay.fov: must be in (0, 180) degrees (got %v)", o.FOV))
	}
	if o := c.Overlay; o.Near <= 0 || o.Near >= o.Far {
		errs = append(errs, fmt.Errorf("overlay: need 0 < near < far (got near %v, far %v)", o.Near, o.Far))
	}
	if k := c.Overlay.BloomKernel; k < 0 || k > MaxBloomKernel {
		errs = append(errs, fmt.Errorf("overlay.bloom_kernel: must be in [0, %d] (got %d)", MaxBloomKernel, k))
	}
	if c.Overlay.BloomScale < 0 {
		errs = append(errs, fmt.Errorf("overlay.bloom_scale: must not be negative (got %v)", c.Overlay.BloomScale))
	}
	if _, err := scene.ParsePolicy(c.Transition.Policy); err != nil {
		errs = append(errs, fmt.Errorf("transition.policy: %w", err))
	}
	if c.Transition.Duration <= 0 {
		errs = append(errs, errors.New("transition.duration must be positive"))
	}
	if c.Host.Mode == ModeHeadless && c.Host.Delta <= 0 {
		errs = append(errs, errors.New("host.delta must be positive in headless mode"))
	}

	return errors.Join(errs...)
}
