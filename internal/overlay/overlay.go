// Package overlay owns the animation state of one overlay instance and
// drives its render loop one tick at a time.
package overlay

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/particles"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shade"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
	"github.com/Faultbox/rainbow-overlay/pkg/math"
)

// ErrDisposed is returned by Tick after Dispose.
var ErrDisposed = errors.New("overlay disposed")

// Backend draws frames. An overlay picks one backend at construction and
// never switches.
type Backend interface {
	Kind() scene.BackendKind
	Init(setup scene.Setup) error
	Resize(width, height int)
	Render(f *scene.Frame) error
	Dispose()
}

// Config holds everything the overlay needs to build its scene.
type Config struct {
	Mesh     mesh.Kind
	Segments int
	YScale   float32
	Flat     bool // skip the mesh and draw the flat animated fill

	FovY     float32 // degrees
	Near     float32
	Far      float32
	Distance float32 // camera distance from the mesh centre
	SpinY    float32 // radians per second
	SpinX    float32 // radians per second

	GlowIntensity float32
	GlowBias      float32
	LightDir      math.Vec3
	Lit           bool

	Bloom scene.Bloom

	Particles particles.Config
	PointSize float32

	Transition TransitionConfig

	Width, Height int
}

// DefaultConfig returns the stock look: an oblate
// 64-segment sphere, 75 degree camera, glow 1.5 with a 9x9 bloom.
func DefaultConfig() Config {
	return Config{
		Mesh:          mesh.KindSphere,
		Segments:      64,
		YScale:        0.8,
		FovY:          75,
		Near:          0.1,
		Far:           1000,
		Distance:      3,
		SpinY:         0.3,
		SpinX:         0.1,
		GlowIntensity: 1.5,
		GlowBias:      shade.DefaultGlowBias,
		LightDir:      math.Vec3{X: 1, Y: 1, Z: 1},
		Lit:           true,
		Bloom:         scene.Bloom{Enabled: true, Kernel: 4, Scale: 2},
		Particles:     particles.Config{},
		PointSize:     3,
		Transition:    DefaultTransitionConfig(),
		Width:         1280,
		Height:        720,
	}
}

// LabelFunc lays out 2D labels for a surface size.
type LabelFunc func(width, height int) []scene.Label

// Option customises an Overlay.
type Option func(*Overlay)

// WithLabels draws the labels returned by fn on top of every frame.
// fn is called again after each resize.
func WithLabels(fn LabelFunc) Option {
	return func(o *Overlay) { o.labelFn = fn }
}

// OnDismissed registers a hook run once when the transition starts.
func OnDismissed(fn func()) Option {
	return func(o *Overlay) { o.onDismiss = fn }
}

// OnComplete registers a hook run once when the transition finishes.
func OnComplete(fn func()) Option {
	return func(o *Overlay) { o.onComplete = fn }
}

// Overlay is the explicit owned context for one overlay instance.
// It is not safe for concurrent use: every method runs on the thread that
// owns the rendering context.
type Overlay struct {
	cfg     Config
	backend Backend

	mesh       *mesh.Mesh
	particles  *particles.System
	transition *Transition

	elapsed   float64
	dismissed bool
	ticks     uint64

	width, height int
	projection    math.Mat4
	model         math.Mat4

	labelFn LabelFunc
	labels  []scene.Label

	onDismiss  func()
	onComplete func()
	completed  bool
	disposed   bool

	frame scene.Frame
}

// New builds the scene and initialises the backend.
func New(cfg Config, backend Backend, opts ...Option) (*Overlay, error) {
	if backend == nil {
		return nil, errors.New("overlay: nil backend")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("overlay: invalid surface size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FovY <= 0 || cfg.FovY >= 180 {
		return nil, fmt.Errorf("overlay: field of view %v outside (0, 180)", cfg.FovY)
	}
	if cfg.Near <= 0 || cfg.Near >= cfg.Far {
		return nil, fmt.Errorf("overlay: invalid clip range near %v far %v", cfg.Near, cfg.Far)
	}
	if cfg.Distance <= 0 {
		cfg.Distance = 3
	}

	o := &Overlay{
		cfg:        cfg,
		backend:    backend,
		transition: NewTransition(cfg.Transition),
		width:      cfg.Width,
		height:     cfg.Height,
	}
	for _, opt := range opts {
		opt(o)
	}

	m, err := mesh.Build(cfg.Mesh, cfg.Segments, cfg.YScale)
	if err != nil {
		return nil, fmt.Errorf("overlay: building mesh: %w", err)
	}
	o.mesh = m

	if cfg.Particles.Count > 0 {
		o.particles = particles.New(cfg.Particles)
	}

	o.updateProjection()
	o.layoutLabels()

	setup := scene.Setup{
		Mesh:          o.mesh,
		ParticleCount: o.particleCount(),
		Width:         o.width,
		Height:        o.height,
		Flat:          cfg.Flat,
	}
	if err := backend.Init(setup); err != nil {
		return nil, fmt.Errorf("overlay: %s backend init: %w", backend.Kind(), err)
	}

	logger.Info("overlay created",
		zap.String("backend", backend.Kind().String()),
		zap.String("mesh", cfg.Mesh.String()),
		zap.Int("vertices", o.mesh.VertexCount()),
		zap.Int("triangles", o.mesh.TriangleCount()),
		zap.Int("particles", o.particleCount()),
		zap.Bool("flat", cfg.Flat),
	)

	return o, nil
}

// Tick advances the overlay by dt seconds and draws one frame. It returns
// false once the transition is complete; the caller stops scheduling then.
func (o *Overlay) Tick(dt float64) (bool, error) {
	if o.disposed {
		return false, ErrDisposed
	}
	if o.completed {
		return false, nil
	}
	if dt < 0 {
		dt = 0
	}

	o.ticks++
	o.elapsed += dt

	effect := o.transition.Effect(o.cfg.Distance)
	if o.particles != nil && !effect.Frozen() {
		o.particles.Step(float32(dt))
	}
	if o.dismissed {
		o.transition.Advance(dt)
		effect = o.transition.Effect(o.cfg.Distance)
	}

	o.model = o.modelTransform(effect)
	o.buildFrame(effect)

	if err := o.backend.Render(&o.frame); err != nil {
		return true, fmt.Errorf("overlay: render tick %d: %w", o.ticks, err)
	}

	if o.transition.State() == StateComplete {
		o.completed = true
		logger.Info("overlay transition complete",
			zap.Uint64("ticks", o.ticks),
			zap.Float64("elapsed", o.elapsed),
		)
		if o.onComplete != nil {
			o.onComplete()
		}
		return false, nil
	}
	return true, nil
}

// OnDismiss starts the transition. Only the first call has any effect.
func (o *Overlay) OnDismiss() {
	if o.dismissed || o.disposed {
		return
	}
	o.dismissed = true
	if !o.transition.Start() {
		return
	}

	logger.Info("overlay dismissed",
		zap.String("policy", o.transition.Policy().String()),
		zap.Float64("elapsed", o.elapsed),
	)
	if o.onDismiss != nil {
		o.onDismiss()
	}
}

// OnResize updates the projection and offscreen buffers for a new surface
// size. Animation state is left untouched.
func (o *Overlay) OnResize(width, height int) {
	if o.disposed || width <= 0 || height <= 0 {
		return
	}
	if width == o.width && height == o.height {
		return
	}

	o.width, o.height = width, height
	o.updateProjection()
	o.layoutLabels()
	o.backend.Resize(width, height)

	logger.Debug("overlay resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Dispose releases backend resources. Safe to call more than once.
func (o *Overlay) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true
	o.backend.Dispose()
	logger.Debug("overlay disposed", zap.Uint64("ticks", o.ticks))
}

// Elapsed returns the time accumulator in seconds.
func (o *Overlay) Elapsed() float64 { return o.elapsed }

// Dismissed reports whether OnDismiss has been called.
func (o *Overlay) Dismissed() bool { return o.dismissed }

// State returns the transition state.
func (o *Overlay) State() State { return o.transition.State() }

// Progress returns the transition progress in [0, 1].
func (o *Overlay) Progress() float64 { return o.transition.Progress() }

// Done reports whether the overlay has finished and should be hidden.
func (o *Overlay) Done() bool { return o.completed }

// Ticks returns how many frames have been drawn.
func (o *Overlay) Ticks() uint64 { return o.ticks }

// Size returns the current surface size.
func (o *Overlay) Size() (int, int) { return o.width, o.height }

// Projection returns the current projection transform.
func (o *Overlay) Projection() math.Mat4 { return o.projection }

// Model returns the model-view transform of the last tick.
func (o *Overlay) Model() math.Mat4 { return o.model }

// Mesh returns the mesh being drawn.
func (o *Overlay) Mesh() *mesh.Mesh { return o.mesh }

// Backend returns the backend kind chosen at construction.
func (o *Overlay) Backend() scene.BackendKind { return o.backend.Kind() }

func (o *Overlay) updateProjection() {
	aspect := float32(o.width) / float32(o.height)
	fov := o.cfg.FovY * gomath.Pi / 180
	o.projection = math.Perspective(fov, aspect, o.cfg.Near, o.cfg.Far)
}

func (o *Overlay) layoutLabels() {
	if o.labelFn != nil {
		o.labels = o.labelFn(o.width, o.height)
	}
}

// modelTransform pushes the mesh down the view axis and spins it. Angles are
// linear in elapsed time; spin-zoom adds its own turn and moves the camera.
func (o *Overlay) modelTransform(e scene.Effect) math.Mat4 {
	t := float32(o.elapsed)
	yaw := t*o.cfg.SpinY + e.Spin
	pitch := t * o.cfg.SpinX

	return math.Translate(0, 0, -e.Distance).
		Mul(math.RotateY(yaw)).
		Mul(math.RotateX(pitch))
}

func (o *Overlay) buildFrame(e scene.Effect) {
	f := &o.frame
	f.Width, f.Height = o.width, o.height
	f.Time = float32(o.elapsed)
	f.Model = o.model
	f.Projection = o.projection
	f.Material = shade.Material{
		Time:          f.Time,
		GlowIntensity: o.cfg.GlowIntensity,
		GlowBias:      o.cfg.GlowBias,
		LightDir:      o.cfg.LightDir,
		Lit:           o.cfg.Lit,
	}
	f.Bloom = o.cfg.Bloom
	f.PointSize = o.cfg.PointSize
	f.Particles = nil
	if o.particles != nil {
		f.Particles = o.particles.Positions()
	}
	f.Effect = e
	f.Labels = o.labels
}

func (o *Overlay) particleCount() int {
	if o.particles == nil {
		return 0
	}
	return o.particles.Len()
}
