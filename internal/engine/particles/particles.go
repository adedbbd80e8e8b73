// Package particles simulates the point cloud that drifts around the mesh.
package particles

import (
	"math"
	"math/rand/v2"

	gmath "github.com/Faultbox/rainbow-overlay/pkg/math"
)

// Config holds particle system settings.
type Config struct {
	Count    int     // fixed number of particles
	Radius   float32 // reflective boundary radius around the origin
	Speed    float32 // initial speed magnitude
	Jitter   float32 // random velocity change per second
	MaxSpeed float32 // velocity clamp, 0 = unclamped
	Seed     uint64
}

// DefaultConfig returns the settings used by the overlay.
func DefaultConfig() Config {
	return Config{
		Count:    200,
		Radius:   1.6,
		Speed:    0.3,
		Jitter:   0.5,
		MaxSpeed: 0.8,
		Seed:     1,
	}
}

// System is a fixed-size array of position/velocity pairs mutated in place.
// Nothing is created or destroyed after New.
type System struct {
	cfg Config
	pos []gmath.Vec3
	vel []gmath.Vec3
	rng *rand.Rand

	// flat xyz copy of pos for GPU upload
	flat []float32
}

// New creates a system with particles scattered inside the boundary.
func New(cfg Config) *System {
	if cfg.Count < 0 {
		cfg.Count = 0
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 1
	}

	s := &System{
		cfg:  cfg,
		pos:  make([]gmath.Vec3, cfg.Count),
		vel:  make([]gmath.Vec3, cfg.Count),
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		flat: make([]float32, cfg.Count*3),
	}

	for i := range s.pos {
		// Uniform direction, radius biased outward so the cloud reads as a shell
		dir := s.randomDirection()
		r := cfg.Radius * float32(math.Cbrt(s.rng.Float64()))
		s.pos[i] = dir.Scale(r)
		s.vel[i] = s.randomDirection().Scale(cfg.Speed)
	}
	s.flatten()

	return s
}

// Len returns the particle count.
func (s *System) Len() int {
	return len(s.pos)
}

// Step advances the simulation by dt seconds: Euler integration, reflection
// at the boundary, then jitter.
func (s *System) Step(dt float32) {
	if dt <= 0 {
		return
	}

	for i := range s.pos {
		p := s.pos[i].Add(s.vel[i].Scale(dt))
		v := s.vel[i]

		if l := p.Length(); l > s.cfg.Radius {
			n := p.Scale(1 / l)
			// Reflect only if still heading outward
			if d := v.Dot(n); d > 0 {
				v = v.Sub(n.Scale(2 * d))
			}
			p = n.Scale(s.cfg.Radius)
		}

		if s.cfg.Jitter > 0 {
			j := s.cfg.Jitter * dt
			v = v.Add(gmath.Vec3{
				X: (s.rng.Float32()*2 - 1) * j,
				Y: (s.rng.Float32()*2 - 1) * j,
				Z: (s.rng.Float32()*2 - 1) * j,
			})
		}

		if s.cfg.MaxSpeed > 0 {
			if l := v.Length(); l > s.cfg.MaxSpeed {
				v = v.Scale(s.cfg.MaxSpeed / l)
			}
		}

		s.pos[i] = p
		s.vel[i] = v
	}
	s.flatten()
}

// Position returns particle i's position.
func (s *System) Position(i int) gmath.Vec3 {
	return s.pos[i]
}

// Velocity returns particle i's velocity.
func (s *System) Velocity(i int) gmath.Vec3 {
	return s.vel[i]
}

// Positions returns the positions as a flat xyz slice. The slice is reused
// between steps; copy it if it must outlive the next Step.
func (s *System) Positions() []float32 {
	return s.flat
}

// Radius returns the boundary radius.
func (s *System) Radius() float32 {
	return s.cfg.Radius
}

func (s *System) flatten() {
	for i, p := range s.pos {
		s.flat[i*3] = p.X
		s.flat[i*3+1] = p.Y
		s.flat[i*3+2] = p.Z
	}
}

func (s *System) randomDirection() gmath.Vec3 {
	// Marsaglia: uniform on the unit sphere
	for {
		x := s.rng.Float32()*2 - 1
		y := s.rng.Float32()*2 - 1
		z := s.rng.Float32()*2 - 1
		if d := x*x + y*y + z*z; d > 1e-6 && d <= 1 {
			return gmath.Vec3{X: x, Y: y, Z: z}.Normalize()
		}
	}
}
