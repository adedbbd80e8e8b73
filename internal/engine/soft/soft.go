// Package soft is the Basic2D backend: it draws overlay frames into an
// *image.RGBA on the CPU with the shading model from package shade.
package soft

import (
	"errors"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/Faultbox/rainbow-overlay/internal/engine/mesh"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shade"
	gmath "github.com/Faultbox/rainbow-overlay/pkg/math"
)

// ErrNotInitialized is returned by Render before Init.
var ErrNotInitialized = errors.New("soft renderer not initialized")

// Renderer rasterises frames in software.
type Renderer struct {
	mesh *mesh.Mesh
	flat bool

	width, height int

	color *image.RGBA // sharp pass
	depth []float32
	out   *image.RGBA // final composited frame
	last  *image.RGBA // captured for frozen transitions

	// per-vertex scratch, reused across frames
	screen []vertex

	initialized bool
}

type vertex struct {
	x, y, z float32
	visible bool
	rgb     [3]float32
}

// New creates an uninitialised software renderer.
func New() *Renderer {
	return &Renderer{}
}

// Kind reports BackendBasic2D.
func (r *Renderer) Kind() scene.BackendKind {
	return scene.BackendBasic2D
}

// Init allocates buffers for the surface size and keeps the mesh.
func (r *Renderer) Init(setup scene.Setup) error {
	if setup.Width <= 0 || setup.Height <= 0 {
		return errors.New("soft: invalid surface size")
	}
	r.mesh = setup.Mesh
	r.flat = setup.Flat || setup.Mesh == nil
	if r.mesh != nil {
		r.screen = make([]vertex, r.mesh.VertexCount())
	}
	r.allocate(setup.Width, setup.Height)
	r.initialized = true
	return nil
}

// Resize reallocates the buffers. The captured frame is dropped.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 || !r.initialized {
		return
	}
	r.allocate(width, height)
}

func (r *Renderer) allocate(width, height int) {
	r.width, r.height = width, height
	rect := image.Rect(0, 0, width, height)
	r.color = image.NewRGBA(rect)
	r.out = image.NewRGBA(rect)
	r.depth = make([]float32, width*height)
	r.last = nil
}

// Render draws one frame.
func (r *Renderer) Render(f *scene.Frame) error {
	if !r.initialized {
		return ErrNotInitialized
	}

	if f.Effect.Frozen() && r.last != nil {
		r.drawFrozen(f.Effect)
		return nil
	}

	r.clear()
	if r.flat {
		r.drawFlat(f.Time)
	} else {
		r.drawMesh(f)
	}
	r.drawPoints(f)

	if f.Bloom.Enabled && f.Bloom.Kernel > 0 {
		r.out = shade.BoxBlur(r.color, f.Bloom.Kernel)
		shade.Composite(r.out, r.color)
	} else {
		copy(r.out.Pix, r.color.Pix)
	}
	r.drawLabels(f.Labels)

	if r.last == nil || r.last.Bounds() != r.out.Bounds() {
		r.last = image.NewRGBA(r.out.Bounds())
	}
	copy(r.last.Pix, r.out.Pix)

	if f.Effect.Frozen() {
		r.drawFrozen(f.Effect)
	}
	return nil
}

// Image returns the most recent frame. The image is reused by the next
// Render call.
func (r *Renderer) Image() *image.RGBA {
	return r.out
}

// Dispose drops all buffers.
func (r *Renderer) Dispose() {
	r.color, r.out, r.last = nil, nil, nil
	r.depth = nil
	r.screen = nil
	r.initialized = false
}

func (r *Renderer) clear() {
	clear(r.color.Pix)
	for i := range r.depth {
		r.depth[i] = float32(math.Inf(1))
	}
}

func (r *Renderer) drawFrozen(e scene.Effect) {
	px := shade.Pixelate(r.last, int(e.PixelSize+0.5))
	shade.Fade(px, e.Opacity)
	r.out = px
}

// drawFlat is the fallback fill: the rainbow keyed on screen position.
func (r *Renderer) drawFlat(t float32) {
	w, h := float32(r.width), float32(r.height)
	for y := range r.height {
		for x := range r.width {
			pos := gmath.Vec3{X: 2*float32(x)/w - 1, Y: 1 - 2*float32(y)/h}
			c := shade.BaseColor(pos, t)
			r.setPixel(x, y, c, 255)
		}
	}
}

// drawMesh shades every vertex, then fills triangles with interpolated
// colour and a depth test.
func (r *Renderer) drawMesh(f *scene.Frame) {
	mvp := f.Projection.Mul(f.Model)
	m := r.mesh

	for i := range m.VertexCount() {
		p := m.Position(i)
		n := m.Normal(i)
		obj := gmath.Vec3{X: p[0], Y: p[1], Z: p[2]}
		normal := f.Model.TransformDirection(gmath.Vec3{X: n[0], Y: n[1], Z: n[2]})
		view := f.Model.TransformVec3(obj)

		v := &r.screen[i]
		v.x, v.y, v.z, v.visible = r.project(mvp, p)
		v.rgb = f.Material.Fragment(obj, normal, view)
	}

	idx := m.Indices
	for t := 0; t+2 < len(idx); t += 3 {
		a, b, c := &r.screen[idx[t]], &r.screen[idx[t+1]], &r.screen[idx[t+2]]
		if !a.visible || !b.visible || !c.visible {
			continue
		}
		r.fillTriangle(a, b, c)
	}
}

// project maps an object-space point to pixel coordinates and NDC depth.
func (r *Renderer) project(mvp gmath.Mat4, p [3]float32) (x, y, z float32, ok bool) {
	cx := mvp[0]*p[0] + mvp[4]*p[1] + mvp[8]*p[2] + mvp[12]
	cy := mvp[1]*p[0] + mvp[5]*p[1] + mvp[9]*p[2] + mvp[13]
	cz := mvp[2]*p[0] + mvp[6]*p[1] + mvp[10]*p[2] + mvp[14]
	cw := mvp[3]*p[0] + mvp[7]*p[1] + mvp[11]*p[2] + mvp[15]
	if cw <= 1e-6 {
		return 0, 0, 0, false
	}
	nx, ny, nz := cx/cw, cy/cw, cz/cw
	x = (nx + 1) * 0.5 * float32(r.width)
	y = (1 - ny) * 0.5 * float32(r.height)
	return x, y, nz, true
}

func (r *Renderer) fillTriangle(a, b, c *vertex) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 {
		return
	}

	minX := max(int(floor3(a.x, b.x, c.x)), 0)
	maxX := min(int(ceil3(a.x, b.x, c.x)), r.width-1)
	minY := max(int(floor3(a.y, b.y, c.y)), 0)
	maxY := min(int(ceil3(a.y, b.y, c.y)), r.height-1)

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(b.x, b.y, c.x, c.y, px, py) / area
			w1 := edge(c.x, c.y, a.x, a.y, px, py) / area
			w2 := edge(a.x, a.y, b.x, b.y, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.z + w1*b.z + w2*c.z
			di := y*r.width + x
			if z >= r.depth[di] {
				continue
			}
			r.depth[di] = z

			var rgb [3]float32
			for ch := range 3 {
				rgb[ch] = w0*a.rgb[ch] + w1*b.rgb[ch] + w2*c.rgb[ch]
			}
			r.setPixel(x, y, rgb, 255)
		}
	}
}

// drawPoints splats particles as squares of PointSize pixels.
func (r *Renderer) drawPoints(f *scene.Frame) {
	if len(f.Particles) < 3 {
		return
	}
	mvp := f.Projection.Mul(f.Model)
	half := int(max(f.PointSize, 1)) / 2

	for i := 0; i+2 < len(f.Particles); i += 3 {
		p := [3]float32{f.Particles[i], f.Particles[i+1], f.Particles[i+2]}
		sx, sy, _, ok := r.project(mvp, p)
		if !ok {
			continue
		}
		c := shade.BaseColor(gmath.Vec3{X: p[0], Y: p[1], Z: p[2]}, f.Time)
		cx, cy := int(sx), int(sy)
		for y := cy - half; y <= cy+half; y++ {
			for x := cx - half; x <= cx+half; x++ {
				if x >= 0 && y >= 0 && x < r.width && y < r.height {
					r.setPixel(x, y, c, 255)
				}
			}
		}
	}
}

func (r *Renderer) drawLabels(labels []scene.Label) {
	for _, l := range labels {
		if l.Image == nil || l.Rect.Empty() {
			continue
		}
		xdraw.NearestNeighbor.Scale(r.out, l.Rect, l.Image, l.Image.Bounds(), xdraw.Over, nil)
	}
}

func (r *Renderer) setPixel(x, y int, rgb [3]float32, a uint8) {
	o := r.color.PixOffset(x, y)
	r.color.Pix[o] = shade.ToByte(rgb[0])
	r.color.Pix[o+1] = shade.ToByte(rgb[1])
	r.color.Pix[o+2] = shade.ToByte(rgb[2])
	r.color.Pix[o+3] = a
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func floor3(a, b, c float32) float32 {
	return float32(math.Floor(float64(min(a, b, c))))
}

func ceil3(a, b, c float32) float32 {
	return float32(math.Ceil(float64(max(a, b, c))))
}
