package soft

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	gomath "math"
	"testing"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shade"
	"github.com/Faultbox/rainbow-overlay/pkg/math"
)

const size = 64

func newRenderer(t *testing.T, flat bool) *Renderer {
	t.Helper()
	m, err := mesh.Sphere(16, 1)
	if err != nil {
		t.Fatalf("Sphere: %v", err)
	}
	r := New()
	if err := r.Init(scene.Setup{Mesh: m, Width: size, Height: size, Flat: flat}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func testFrame() *scene.Frame {
	return &scene.Frame{
		Width:      size,
		Height:     size,
		Time:       0.25,
		Model:      math.Translate(0, 0, -3),
		Projection: math.Perspective(75*gomath.Pi/180, 1, 0.1, 100),
		Material: shade.Material{
			Time:          0.25,
			GlowIntensity: 1.5,
			GlowBias:      shade.DefaultGlowBias,
		},
		Effect: scene.Effect{Opacity: 1, PixelSize: 2, Distance: 3},
	}
}

func TestKind(t *testing.T) {
	if New().Kind() != scene.BackendBasic2D {
		t.Error("soft renderer should report BackendBasic2D")
	}
}

func TestRenderBeforeInit(t *testing.T) {
	if err := New().Render(testFrame()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestRenderMeshCoverage(t *testing.T) {
	r := newRenderer(t, false)
	if err := r.Render(testFrame()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := r.Image()

	if a := img.RGBAAt(size/2, size/2).A; a != 255 {
		t.Errorf("centre alpha = %d, want 255 (mesh covers the centre)", a)
	}
	if a := img.RGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner alpha = %d, want 0 (nothing drawn there)", a)
	}
}

func TestRimIsBrighterThanCentre(t *testing.T) {
	r := newRenderer(t, false)
	r.Render(testFrame())
	img := r.Image()

	lum := func(c color.RGBA) int { return int(c.R) + int(c.G) + int(c.B) }

	centre := lum(img.RGBAAt(size/2, size/2))
	brightest := 0
	for x := range size {
		brightest = max(brightest, lum(img.RGBAAt(x, size/2)))
	}
	if brightest <= centre {
		t.Errorf("no rim glow: brightest %d, centre %d", brightest, centre)
	}
}

func TestBloomSpreadsGlow(t *testing.T) {
	r := newRenderer(t, false)
	f := testFrame()
	r.Render(f)
	sharp := countOpaque(r.Image())

	f.Bloom = scene.Bloom{Enabled: true, Kernel: 4, Scale: 1}
	r.Render(f)
	glow := countNonZeroAlpha(r.Image())

	if glow <= sharp {
		t.Errorf("bloom did not widen coverage: %d <= %d", glow, sharp)
	}
	if a := r.Image().RGBAAt(size/2, size/2).A; a != 255 {
		t.Errorf("sharp pass should stay opaque on top of the glow, alpha = %d", a)
	}
}

func TestFlatFill(t *testing.T) {
	r := newRenderer(t, true)
	if err := r.Render(testFrame()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n := countOpaque(r.Image()); n != size*size {
		t.Errorf("flat fill covered %d pixels, want %d", n, size*size)
	}
}

func TestFrozenPixelate(t *testing.T) {
	r := newRenderer(t, false)
	f := testFrame()
	r.Render(f)
	captured := append([]byte(nil), r.Image().Pix...)

	f.Effect = scene.Effect{Active: true, Policy: scene.PolicyPixelate, PixelSize: 1, Opacity: 1}
	f.Model = math.Translate(5, 0, -3) // moved mesh must not show up
	r.Render(f)
	if !bytes.Equal(r.Image().Pix, captured) {
		t.Error("frozen frame at block 1 opacity 1 should equal the captured frame")
	}

	f.Effect.PixelSize = 8
	r.Render(f)
	img := r.Image()
	if img.RGBAAt(9, 9) != img.RGBAAt(15, 15) {
		t.Error("pixels in the same 8x8 block differ")
	}

	f.Effect.Opacity = 0
	r.Render(f)
	for i, v := range r.Image().Pix {
		if v != 0 {
			t.Fatalf("opacity 0 left byte %d = %d", i, v)
		}
	}
}

func TestLabelsDrawnOnTop(t *testing.T) {
	r := newRenderer(t, false)
	red := image.NewRGBA(image.Rect(0, 0, 1, 1))
	red.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})

	f := testFrame()
	f.Labels = []scene.Label{{Image: red, Rect: image.Rect(28, 28, 36, 36)}}
	r.Render(f)

	want := color.RGBA{R: 255, A: 255}
	if got := r.Image().RGBAAt(32, 32); got != want {
		t.Errorf("label pixel = %v, want %v", got, want)
	}
}

func TestParticlesDrawn(t *testing.T) {
	r := newRenderer(t, true)
	r.flat = false
	r.mesh = &mesh.Mesh{}

	f := testFrame()
	f.Particles = []float32{0, 0, 0}
	f.PointSize = 3
	r.Render(f)
	if a := r.Image().RGBAAt(size/2, size/2).A; a != 255 {
		t.Errorf("particle at origin not drawn, alpha = %d", a)
	}
	if n := countOpaque(r.Image()); n > 9 {
		t.Errorf("point covered %d pixels, want at most 9", n)
	}
}

func TestResize(t *testing.T) {
	r := newRenderer(t, false)
	r.Render(testFrame())
	r.Resize(32, 16)

	f := testFrame()
	f.Width, f.Height = 32, 16
	f.Effect = scene.Effect{Active: true, Policy: scene.PolicyPixelate, PixelSize: 2, Opacity: 1}
	if err := r.Render(f); err != nil {
		t.Fatalf("Render after resize: %v", err)
	}
	if b := r.Image().Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("bounds after resize = %v", b)
	}
}

func TestDispose(t *testing.T) {
	r := newRenderer(t, false)
	r.Dispose()
	if err := r.Render(testFrame()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Render after Dispose err = %v", err)
	}
}

func countOpaque(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 {
			n++
		}
	}
	return n
}

func countNonZeroAlpha(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}
