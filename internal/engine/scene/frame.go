// Package scene defines the per-frame description the overlay hands to a
// render backend.
package scene

import (
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shade"
	"github.com/Faultbox/rainbow-overlay/pkg/math"
)

// BackendKind tags which drawing path a backend implements.
type BackendKind int

const (
	BackendGL BackendKind = iota
	BackendBasic2D
)

// String returns the backend name used in logs.
func (k BackendKind) String() string {
	if k == BackendBasic2D {
		return "basic2d"
	}
	return "gl"
}

// Policy selects how the dismissal transition looks.
type Policy int

const (
	// PolicyPixelate grows the pixel block from 2 to 50 texels while fading out.
	PolicyPixelate Policy = iota
	// PolicySpinZoom spins one full turn while the camera moves in.
	PolicySpinZoom
)

// String returns the config name of the policy.
func (p Policy) String() string {
	if p == PolicySpinZoom {
		return "spin-zoom"
	}
	return "pixelate"
}

// ParsePolicy converts a config value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pixelate", "pixel":
		return PolicyPixelate, nil
	case "spin-zoom", "spinzoom", "zoom":
		return PolicySpinZoom, nil
	}
	return PolicyPixelate, fmt.Errorf("unknown transition policy %q", s)
}

// Effect is the transition's contribution to a frame.
type Effect struct {
	Active    bool // a transition is running (or just completed)
	Policy    Policy
	Progress  float32 // 0..1
	PixelSize float32 // pixelate: block size in texels
	Opacity   float32 // pixelate: 1 -> 0
	Spin      float32 // spin-zoom: extra rotation in radians
	Distance  float32 // spin-zoom: current camera distance
}

// Frozen reports whether the backend should replay the last captured frame
// through the transition pass instead of drawing the mesh again.
func (e Effect) Frozen() bool {
	return e.Active && e.Policy == PolicyPixelate
}

// Bloom configures the glow post-process.
type Bloom struct {
	Enabled bool
	Kernel  int     // box kernel radius in taps, e.g. 4 => 9x9
	Scale   float32 // tap spacing in texels
}

// Label is a pre-rasterised 2D image drawn on top of the 3D content.
type Label struct {
	Image *image.RGBA
	Rect  image.Rectangle // destination in surface pixels, top-left origin
}

// Frame is everything a backend needs to draw one tick.
type Frame struct {
	Width, Height int
	Time          float32
	Model         math.Mat4
	Projection    math.Mat4
	Material      shade.Material
	Bloom         Bloom
	Particles     []float32 // xyz per point, object space
	PointSize     float32
	Effect        Effect
	Labels        []Label
}

// Setup is handed to a backend once, before the first frame.
type Setup struct {
	Mesh          *mesh.Mesh
	ParticleCount int
	Width, Height int
	Flat          bool // draw the flat animated fill instead of the mesh
}
