package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test graphics defaults
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Test overlay defaults
	if cfg.Overlay.Mesh != "sphere" || cfg.Overlay.Segments != 64 {
		t.Errorf("expected 64-segment sphere, got %d-segment %s", cfg.Overlay.Segments, cfg.Overlay.Mesh)
	}
	if cfg.Overlay.GlowIntensity != 1.5 || cfg.Overlay.GlowBias != 0.6 {
		t.Errorf("expected glow 1.5 bias 0.6, got %f %f", cfg.Overlay.GlowIntensity, cfg.Overlay.GlowBias)
	}
	if !cfg.Overlay.Bloom || cfg.Overlay.BloomKernel != 4 {
		t.Errorf("expected bloom with kernel 4, got %v %d", cfg.Overlay.Bloom, cfg.Overlay.BloomKernel)
	}

	// Test transition defaults
	if cfg.Transition.Policy != "pixelate" {
		t.Errorf("expected pixelate policy, got %s", cfg.Transition.Policy)
	}
	if cfg.Transition.Duration != time.Second {
		t.Errorf("expected duration 1s, got %v", cfg.Transition.Duration)
	}

	// Test host defaults
	if cfg.Host.Mode != ModeSDL {
		t.Errorf("expected sdl host, got %s", cfg.Host.Mode)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false
  fps_limit: 144

overlay:
  mesh: cube
  segments: 16
  light_direction: [0, 1, 0]
  particles: 200
  title: "Welcome"

transition:
  policy: spin-zoom
  duration: 750ms

audio:
  master_volume: 0.5
  cue_file: "whoosh.wav"

host:
  mode: headless
  ticks: 300
  delta: 0.01

logging:
  level: "debug"
  log_file: "overlay.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920, got %d", cfg.Graphics.Width)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Graphics.FPSLimit != 144 {
		t.Errorf("expected fps limit 144, got %d", cfg.Graphics.FPSLimit)
	}

	if cfg.Overlay.Mesh != "cube" || cfg.Overlay.Segments != 16 {
		t.Errorf("expected 16-segment cube, got %d %s", cfg.Overlay.Segments, cfg.Overlay.Mesh)
	}
	if cfg.Overlay.LightDirection != [3]float32{0, 1, 0} {
		t.Errorf("expected light (0,1,0), got %v", cfg.Overlay.LightDirection)
	}
	if cfg.Overlay.Particles != 200 || cfg.Overlay.Title != "Welcome" {
		t.Errorf("expected 200 particles and title, got %d %q", cfg.Overlay.Particles, cfg.Overlay.Title)
	}
	// Unset keys keep their defaults
	if cfg.Overlay.YScale != 0.8 {
		t.Errorf("expected default y_scale 0.8, got %f", cfg.Overlay.YScale)
	}

	if cfg.Transition.Policy != "spin-zoom" {
		t.Errorf("expected spin-zoom, got %s", cfg.Transition.Policy)
	}
	if cfg.Transition.Duration != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Transition.Duration)
	}

	if cfg.Audio.MasterVolume != 0.5 || cfg.Audio.CueFile != "whoosh.wav" {
		t.Errorf("unexpected audio config %+v", cfg.Audio)
	}

	if cfg.Host.Mode != ModeHeadless || cfg.Host.Ticks != 300 || cfg.Host.Delta != 0.01 {
		t.Errorf("unexpected host config %+v", cfg.Host)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "overlay.log" {
		t.Errorf("expected log file 'overlay.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestLoadFileValidates(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("overlay:\n  segments: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFile(configPath)
	if !errors.Is(err, mesh.ErrInvalidSegments) {
		t.Errorf("expected ErrInvalidSegments, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Host.Mode = "web" }},
		{"zero width", func(c *Config) { c.Graphics.Width = 0 }},
		{"unknown mesh", func(c *Config) { c.Overlay.Mesh = "torus" }},
		{"zero segments", func(c *Config) { c.Overlay.Segments = 0 }},
		{"zero fov", func(c *Config) { c.Overlay.FOV = 0 }},
		{"straight fov", func(c *Config) { c.Overlay.FOV = 180 }},
		{"zero near", func(c *Config) { c.Overlay.Near = 0 }},
		{"near beyond far", func(c *Config) {
			c.Overlay.Near = 10
			c.Overlay.Far = 5
		}},
		{"near equals far", func(c *Config) { c.Overlay.Far = c.Overlay.Near }},
		{"negative bloom kernel", func(c *Config) { c.Overlay.BloomKernel = -1 }},
		{"huge bloom kernel", func(c *Config) { c.Overlay.BloomKernel = MaxBloomKernel + 1 }},
		{"negative bloom scale", func(c *Config) { c.Overlay.BloomScale = -1 }},
		{"unknown policy", func(c *Config) { c.Transition.Policy = "wipe" }},
		{"zero duration", func(c *Config) { c.Transition.Duration = 0 }},
		{"headless without delta", func(c *Config) {
			c.Host.Mode = ModeHeadless
			c.Host.Delta = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAcceptsRangeEdges(t *testing.T) {
	cfg := Default()
	cfg.Overlay.FOV = 179
	cfg.Overlay.BloomKernel = MaxBloomKernel
	cfg.Overlay.BloomScale = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.Overlay.BloomKernel = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("bloom_kernel 0 should disable the blur, got %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Keep the user's real config dir out of the search
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	// Create temp directory and change to it
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create config.yaml in current directory
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name: "headless run flags",
			setup: func() {
				*flagMode = ModeHeadless
				*flagTicks = 163
				*flagDismiss = 100
				*flagSnapshot = "out.png"
			},
			verify: func(t *testing.T, cfg *Config) {
				h := cfg.Host
				if h.Mode != ModeHeadless || h.Ticks != 163 || h.DismissAfter != 100 || h.Snapshot != "out.png" {
					t.Errorf("unexpected host config %+v", h)
				}
			},
			teardown: func() {
				*flagMode = ""
				*flagTicks = 0
				*flagDismiss = 0
				*flagSnapshot = ""
			},
		},
		{
			name: "scene flags",
			setup: func() {
				*flagMesh = "cube"
				*flagSegments = 8
				*flagTransition = "spin-zoom"
				*flagParticles = 0
				*flagFlat = true
			},
			verify: func(t *testing.T, cfg *Config) {
				o := cfg.Overlay
				if o.Mesh != "cube" || o.Segments != 8 || o.Particles != 0 || !o.Flat {
					t.Errorf("unexpected overlay config %+v", o)
				}
				if cfg.Transition.Policy != "spin-zoom" {
					t.Errorf("expected spin-zoom, got %s", cfg.Transition.Policy)
				}
			},
			teardown: func() {
				*flagMesh = ""
				*flagSegments = 0
				*flagTransition = ""
				*flagParticles = -1
				*flagFlat = false
			},
		},
		{
			name:  "mute flag",
			setup: func() { *flagMute = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Audio.Enabled {
					t.Error("expected audio disabled with mute flag")
				}
			},
			teardown: func() { *flagMute = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width should be from flag (1920), not file (1600)
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}

	// Height should be from file (900) since no flag override
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Overlay.Segments = 12
	cfg.Transition.Policy = "spin-zoom"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Overlay.Segments != 12 || loaded.Transition.Policy != "spin-zoom" {
		t.Errorf("round trip lost values: %+v %+v", loaded.Overlay, loaded.Transition)
	}
}

func TestSave(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("config dir is only redirectable through XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Host.Mode = ModeTerm
	path, err := cfg.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != ConfigDir() {
		t.Errorf("saved to %s, want a file in %s", path, ConfigDir())
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Host.Mode != ModeTerm {
		t.Errorf("mode = %q, want %q", loaded.Host.Mode, ModeTerm)
	}
}
