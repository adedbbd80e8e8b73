package overlay

import (
	gomath "math"
	"time"

	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/pkg/math"
)

// State is the transition sequencer's state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Pixelate policy endpoints.
const (
	pixelSizeStart = 2
	pixelSizeEnd   = 50
)

// TransitionConfig holds the sequencer settings.
type TransitionConfig struct {
	Policy   scene.Policy
	Duration time.Duration
	// FrameStep is how far each tick advances the transition. Zero means
	// use the tick's own delta.
	FrameStep time.Duration
	// CloseDistance is where the spin-zoom camera ends up.
	CloseDistance float32
}

// DefaultTransitionConfig returns the 1s pixelate fade.
func DefaultTransitionConfig() TransitionConfig {
	return TransitionConfig{
		Policy:        scene.PolicyPixelate,
		Duration:      time.Second,
		FrameStep:     16 * time.Millisecond,
		CloseDistance: 1.0,
	}
}

// Transition runs the fixed-duration dismissal effect.
// Idle -> Running happens once; Complete is terminal.
type Transition struct {
	cfg      TransitionConfig
	state    State
	elapsed  time.Duration
	progress float64
}

// NewTransition creates an idle transition.
func NewTransition(cfg TransitionConfig) *Transition {
	if cfg.Duration <= 0 {
		cfg.Duration = time.Second
	}
	return &Transition{cfg: cfg}
}

// Start moves Idle to Running. It reports whether this call started it;
// later calls are no-ops.
func (t *Transition) Start() bool {
	if t.state != StateIdle {
		return false
	}
	t.state = StateRunning
	return true
}

// Advance steps a running transition. dt is the tick delta, used only when
// no fixed FrameStep is configured.
func (t *Transition) Advance(dt float64) {
	if t.state != StateRunning {
		return
	}

	step := t.cfg.FrameStep
	if step <= 0 {
		step = time.Duration(dt * float64(time.Second))
	}
	if step > 0 {
		t.elapsed += step
	}

	p := float64(t.elapsed) / float64(t.cfg.Duration)
	if p >= 1 {
		p = 1
		t.state = StateComplete
	}
	if p > t.progress {
		t.progress = p
	}
}

// State returns the current state.
func (t *Transition) State() State {
	return t.state
}

// Progress returns p in [0, 1].
func (t *Transition) Progress() float64 {
	return t.progress
}

// Policy returns the configured policy.
func (t *Transition) Policy() scene.Policy {
	return t.cfg.Policy
}

// Effect evaluates the policy at the current progress. restDistance is the
// camera distance before the transition.
func (t *Transition) Effect(restDistance float32) scene.Effect {
	p := float32(t.progress)
	e := scene.Effect{
		Active:    t.state != StateIdle,
		Policy:    t.cfg.Policy,
		Progress:  p,
		PixelSize: pixelSizeStart,
		Opacity:   1,
		Distance:  restDistance,
	}
	if !e.Active {
		return e
	}

	switch t.cfg.Policy {
	case scene.PolicySpinZoom:
		e.Spin = p * 2 * gomath.Pi
		e.Distance = math.Lerp(restDistance, t.cfg.CloseDistance, p)
	default:
		e.PixelSize = math.Lerp(pixelSizeStart, pixelSizeEnd, p)
		e.Opacity = 1 - p
	}
	return e
}
