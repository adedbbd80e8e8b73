package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
)

func writeScene(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing scene: %v", err)
	}
	return path
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte("mesh: cube\nsegments: 12\ny_scale: 0.5\ntitle: Welcome\ntransition: spin-zoom\nparticles: 50\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Mesh != "cube" || s.Segments != 12 || s.YScale != 0.5 || s.Title != "Welcome" || s.Particles != 50 {
		t.Errorf("parsed scene = %+v", s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "mesh: [unterminated"},
		{"unknown mesh", "mesh: torus"},
		{"unknown policy", "transition: wipe"},
		{"negative segments", "segments: -1"},
		{"negative particles", "particles: -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Parse([]byte("segments: -2")); !errors.Is(err, mesh.ErrInvalidSegments) {
		t.Errorf("negative segments err = %v, want ErrInvalidSegments", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeScene(t, "mesh: sphere\nsegments: 8\n")
	m := NewManager()

	r := Await(m.Load(context.Background(), path))
	if !r.Ready() {
		t.Fatalf("Load failed: %v", r.Err)
	}
	if r.Scene.Segments != 8 {
		t.Errorf("segments = %d, want 8", r.Scene.Segments)
	}

	// Second load is served from the cache.
	r2 := Await(m.Load(context.Background(), path))
	if r2.Scene != r.Scene {
		t.Error("second load did not hit the cache")
	}
	if hits, misses := m.Stats(); hits != 1 || misses != 1 {
		t.Errorf("cache stats = %d hits %d misses, want 1/1", hits, misses)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager()
	r := Await(m.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")))
	if r.Ready() {
		t.Fatal("missing file reported ready")
	}
	if !errors.Is(r.Err, ErrAssetLoad) || !errors.Is(r.Err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrAssetLoad wrapping ErrNotExist", r.Err)
	}
}

func TestLoadInvalidScene(t *testing.T) {
	path := writeScene(t, "mesh: torus\n")
	r := Await(NewManager().Load(context.Background(), path))
	if !errors.Is(r.Err, ErrAssetLoad) {
		t.Errorf("err = %v, want ErrAssetLoad", r.Err)
	}
}

func TestLoadCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	m := NewManager()
	m.readFile = func(string) ([]byte, error) {
		<-release
		return []byte("mesh: sphere"), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	r := Await(m.Load(ctx, "slow.yaml"))
	if !errors.Is(r.Err, ErrAssetLoad) || !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrAssetLoad wrapping DeadlineExceeded", r.Err)
	}
}

func TestLoadYieldsOnce(t *testing.T) {
	path := writeScene(t, "mesh: cube\n")
	ch := NewManager().Load(context.Background(), path)
	<-ch
	if _, ok := <-ch; ok {
		t.Error("channel yielded a second result")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("a"); ok {
		t.Error("empty cache returned a value")
	}
	s := &Scene{Mesh: "cube"}
	c.Set("a", s)
	if got, ok := c.Get("a"); !ok || got != s {
		t.Error("cache did not return stored scene")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits %d misses, want 1/1", hits, misses)
	}
}
