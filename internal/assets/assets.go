// Package assets loads optional scene descriptions asynchronously.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
)

// ErrAssetLoad wraps every scene loading failure. Callers degrade to the
// flat fill instead of retrying.
var ErrAssetLoad = errors.New("asset load failed")

// Scene describes what the overlay draws. Zero fields keep the configured
// defaults.
type Scene struct {
	Mesh          string  `yaml:"mesh"`
	Segments      int     `yaml:"segments"`
	YScale        float32 `yaml:"y_scale"`
	Title         string  `yaml:"title"`
	Transition    string  `yaml:"transition"`
	Particles     int     `yaml:"particles"`
	GlowIntensity float32 `yaml:"glow_intensity"`
}

// Result is the outcome of one Load: either Scene or Err is set.
type Result struct {
	Path  string
	Scene *Scene
	Err   error
}

// Ready reports whether the scene loaded.
func (r Result) Ready() bool {
	return r.Err == nil && r.Scene != nil
}

// Parse decodes and validates a scene document.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	if s.Mesh != "" {
		if _, err := mesh.ParseKind(s.Mesh); err != nil {
			return nil, err
		}
	}
	if s.Transition != "" {
		if _, err := scene.ParsePolicy(s.Transition); err != nil {
			return nil, err
		}
	}
	if s.Segments < 0 {
		return nil, fmt.Errorf("scene: %w (got %d)", mesh.ErrInvalidSegments, s.Segments)
	}
	if s.Particles < 0 || s.YScale < 0 || s.GlowIntensity < 0 {
		return nil, errors.New("scene: negative value")
	}
	return &s, nil
}

// Manager loads scenes and caches the parsed result by path.
type Manager struct {
	cache    *Cache
	readFile func(string) ([]byte, error)
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache:    NewCache(),
		readFile: os.ReadFile,
	}
}

// Load reads and parses path in a goroutine. The returned channel yields
// exactly one Result and is then closed. There is a single attempt: a failed
// path is not retried by the manager.
func (m *Manager) Load(ctx context.Context, path string) <-chan Result {
	out := make(chan Result, 1)

	if s, ok := m.cache.Get(path); ok {
		out <- Result{Path: path, Scene: s}
		close(out)
		return out
	}

	done := make(chan Result, 1)
	go func() {
		data, err := m.readFile(path)
		if err != nil {
			done <- Result{Path: path, Err: fmt.Errorf("%w: %w", ErrAssetLoad, err)}
			return
		}
		s, err := Parse(data)
		if err != nil {
			done <- Result{Path: path, Err: fmt.Errorf("%w: %s: %w", ErrAssetLoad, path, err)}
			return
		}
		m.cache.Set(path, s)
		done <- Result{Path: path, Scene: s}
	}()

	go func() {
		defer close(out)
		select {
		case r := <-done:
			out <- r
		case <-ctx.Done():
			out <- Result{Path: path, Err: fmt.Errorf("%w: %w", ErrAssetLoad, ctx.Err())}
		}
	}()

	return out
}

// Stats returns the cache hits and misses of every Load so far.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Await blocks for the result of Load and logs a failure.
func Await(ch <-chan Result) Result {
	r, ok := <-ch
	if !ok {
		return Result{Err: fmt.Errorf("%w: loader closed", ErrAssetLoad)}
	}
	if r.Err != nil {
		logger.Warn("scene load failed, using flat fill",
			zap.String("path", r.Path),
			zap.Error(r.Err),
		)
		return r
	}
	logger.Info("scene loaded",
		zap.String("path", r.Path),
		zap.String("mesh", r.Scene.Mesh),
		zap.Int("segments", r.Scene.Segments),
	)
	return r
}

// Cache holds parsed scenes.
type Cache struct {
	data map[string]*Scene
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Scene),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return s, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, s *Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = s
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
