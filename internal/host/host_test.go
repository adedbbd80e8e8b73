package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/renderer"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shader"
	"github.com/Faultbox/rainbow-overlay/internal/engine/window"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host.Mode = config.ModeHeadless
	cfg.Host.Hz = 0
	cfg.Host.Delta = 0.01
	cfg.Overlay.Segments = 8
	cfg.Graphics.Width = 64
	cfg.Graphics.Height = 48
	cfg.Audio.Enabled = false
	return cfg
}

func TestOverlayConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Overlay.Mesh = "cube"
	cfg.Overlay.Particles = 25
	cfg.Overlay.ParticleRadius = 2
	cfg.Overlay.LightDirection = [3]float32{0, 1, 0}
	cfg.Transition.Policy = "spin-zoom"
	cfg.Transition.Duration = 500 * time.Millisecond

	oc, err := OverlayConfig(cfg)
	if err != nil {
		t.Fatalf("OverlayConfig: %v", err)
	}

	if oc.Mesh != mesh.KindCube {
		t.Errorf("Mesh = %v, want cube", oc.Mesh)
	}
	if oc.Segments != 8 || oc.Width != 64 || oc.Height != 48 {
		t.Errorf("segments/size = %d %dx%d", oc.Segments, oc.Width, oc.Height)
	}
	if oc.Particles.Count != 25 || oc.Particles.Radius != 2 {
		t.Errorf("Particles = %+v", oc.Particles)
	}
	if oc.LightDir.Y != 1 || oc.LightDir.X != 0 {
		t.Errorf("LightDir = %+v", oc.LightDir)
	}
	if oc.Transition.Policy != scene.PolicySpinZoom || oc.Transition.Duration != 500*time.Millisecond {
		t.Errorf("Transition = %+v", oc.Transition)
	}
	if oc.FovY != 75 || oc.GlowIntensity != 1.5 || !oc.Bloom.Enabled || oc.Bloom.Kernel != 4 {
		t.Errorf("look = fov %v glow %v bloom %+v", oc.FovY, oc.GlowIntensity, oc.Bloom)
	}
}

func TestOverlayConfigRejectsUnknownNames(t *testing.T) {
	cfg := testConfig()
	cfg.Overlay.Mesh = "torus"
	if _, err := OverlayConfig(cfg); err == nil {
		t.Error("expected error for unknown mesh")
	}

	cfg = testConfig()
	cfg.Transition.Policy = "wipe"
	if _, err := OverlayConfig(cfg); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPrepareAppliesScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	body := "mesh: cube\nsegments: 6\ntitle: Welcome back\ntransition: spin-zoom\nparticles: 10\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Overlay.SceneFile = path

	plan, err := Prepare(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if plan.Overlay.Flat {
		t.Error("loaded scene should not fall back to flat fill")
	}
	if plan.Overlay.Mesh != mesh.KindCube || plan.Overlay.Segments != 6 {
		t.Errorf("mesh = %v/%d", plan.Overlay.Mesh, plan.Overlay.Segments)
	}
	if plan.Overlay.Transition.Policy != scene.PolicySpinZoom {
		t.Errorf("policy = %v", plan.Overlay.Transition.Policy)
	}
	if plan.Overlay.Particles.Count != 10 {
		t.Errorf("particles = %d", plan.Overlay.Particles.Count)
	}
	if plan.Title != "Welcome back" {
		t.Errorf("title = %q", plan.Title)
	}
}

func TestPrepareReusesLoadedScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte("mesh: cube\nsegments: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Overlay.SceneFile = path

	if _, err := Prepare(context.Background(), cfg); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	hits, _ := scenes.Stats()

	plan, err := Prepare(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if got, _ := scenes.Stats(); got != hits+1 {
		t.Errorf("cache hits = %d, want %d", got, hits+1)
	}
	if plan.Overlay.Mesh != mesh.KindCube || plan.Overlay.Segments != 5 {
		t.Errorf("cached scene not applied: %v/%d", plan.Overlay.Mesh, plan.Overlay.Segments)
	}
}

func TestPrepareFallsBackToFlat(t *testing.T) {
	cfg := testConfig()
	cfg.Overlay.SceneFile = filepath.Join(t.TempDir(), "missing.yaml")

	plan, err := Prepare(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !plan.Overlay.Flat {
		t.Error("missing scene should select the flat fill")
	}
}

func TestPrepareWithoutScene(t *testing.T) {
	plan, err := Prepare(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if plan.Overlay.Flat {
		t.Error("no scene file should keep the mesh")
	}
	if plan.Title != "Click to continue" {
		t.Errorf("title = %q", plan.Title)
	}
}

func TestNewTitle(t *testing.T) {
	plan := &Plan{Title: "", TitleScale: 2}
	if plan.NewTitle() != nil {
		t.Error("empty title should give nil")
	}

	plan.Title = "Hi"
	tt := plan.NewTitle()
	if tt == nil || tt.Text() != "Hi" {
		t.Fatalf("NewTitle = %v", tt)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Host.Mode = "vr"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNewSelectsHeadless(t *testing.T) {
	h, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if _, ok := h.(*Headless); !ok {
		t.Errorf("New returned %T, want *Headless", h)
	}
}

func TestGLUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no error", nil, false},
		{"no context", fmt.Errorf("failed to create window: %w", window.ErrContextUnavailable), true},
		{"no driver", fmt.Errorf("failed to create overlay: %w", renderer.ErrUnavailable), true},
		{"compile", fmt.Errorf("mesh program: %w", shader.ErrCompile), true},
		{"link", fmt.Errorf("bloom program: %w", shader.ErrLink), true},
		{"other", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := glUnavailable(tt.err); got != tt.want {
				t.Errorf("glUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFallbackToTermMovesLogsOffStdout(t *testing.T) {
	cfg := testConfig()
	cfg.Host.Mode = config.ModeSDL
	cfg.Logging.Level = "debug"
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "overlay.log")

	plan, err := Prepare(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = stdout
		logger.Log = zap.NewNop()
		logger.Sugar = logger.Log.Sugar()
	})

	// The SDL host starts with console logging.
	if err := logger.Init("debug", ""); err != nil {
		t.Fatalf("logger.Init: %v", err)
	}

	term, err := fallbackToTerm(cfg, plan, tcell.NewSimulationScreen("UTF-8"),
		fmt.Errorf("failed to create window: %w", window.ErrContextUnavailable))
	if err != nil {
		t.Fatalf("fallbackToTerm: %v", err)
	}
	defer term.Close()

	logger.Info("drawn under the terminal")
	logger.Sync()
	w.Close()

	console, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(console) != 0 {
		t.Errorf("stdout written after the fallback: %q", console)
	}

	content, err := os.ReadFile(cfg.Logging.LogFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"falling back to the terminal", "drawn under the terminal"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
}
