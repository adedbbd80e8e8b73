// Package renderer is the OpenGL backend of the overlay.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/engine/framebuffer"
	"github.com/Faultbox/rainbow-overlay/internal/engine/renderer/shaders"
	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
	"github.com/Faultbox/rainbow-overlay/internal/engine/shader"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
)

// ErrUnavailable means the OpenGL driver or its render targets could not be
// set up. Like a shader failure it rules out the GL backend.
var ErrUnavailable = errors.New("OpenGL unavailable")

// Renderer draws overlay frames with OpenGL 4.1 core.
// IMPORTANT: Init must be called AFTER the OpenGL context is created!
type Renderer struct {
	width, height int
	flat          bool

	meshProgram       uint32
	bloomProgram      uint32
	transitionProgram uint32
	pointsProgram     uint32
	labelProgram      uint32

	meshVAO, meshVBO, meshEBO uint32
	indexCount                int32

	pointsVAO, pointsVBO uint32
	pointCount           int

	emptyVAO uint32 // bound for gl_VertexID-only draws

	sceneFB   *framebuffer.Framebuffer // bloom source
	captureFB *framebuffer.Framebuffer // last presented frame, for frozen transitions
	captured  bool

	labels map[*image.RGBA]uint32

	meshU       meshUniforms
	bloomU      bloomUniforms
	transitionU transitionUniforms
	pointsU     pointsUniforms
	labelU      labelUniforms
}

type meshUniforms struct {
	model, projection, time, glow, bias, lightDir, lit int32
}

type bloomUniforms struct {
	scene, texel, radius, scale int32
}

type transitionUniforms struct {
	frame, resolution, pixelSize, opacity int32
}

type pointsUniforms struct {
	model, projection, pointSize, time int32
}

type labelUniforms struct {
	rect, tex int32
}

// New creates an uninitialised GL renderer.
func New() *Renderer {
	return &Renderer{labels: make(map[*image.RGBA]uint32)}
}

// Kind reports BackendGL.
func (r *Renderer) Kind() scene.BackendKind {
	return scene.BackendGL
}

// Init loads GL function pointers, compiles the programs and uploads the
// mesh. A shader failure is returned wrapped and is not retried.
func (r *Renderer) Init(setup scene.Setup) error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("%w: failed to initialize OpenGL: %w", ErrUnavailable, err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	r.width, r.height = setup.Width, setup.Height
	r.flat = setup.Flat || setup.Mesh == nil

	if err := r.createPrograms(); err != nil {
		r.Dispose()
		return err
	}

	gl.GenVertexArrays(1, &r.emptyVAO)
	if !r.flat {
		r.uploadMesh(setup)
	}
	if setup.ParticleCount > 0 {
		r.createPoints(setup.ParticleCount)
	}

	var err error
	if r.sceneFB, err = framebuffer.New(r.width, r.height, true); err != nil {
		r.Dispose()
		return fmt.Errorf("%w: scene target: %w", ErrUnavailable, err)
	}
	if r.captureFB, err = framebuffer.New(r.width, r.height, false); err != nil {
		r.Dispose()
		return fmt.Errorf("%w: capture target: %w", ErrUnavailable, err)
	}

	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.DepthFunc(gl.LESS)
	gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA) // premultiplied

	return nil
}

func (r *Renderer) createPrograms() error {
	programs := []struct {
		name     string
		dst      *uint32
		vert     string
		frag     string
		resolved func(p uint32)
	}{
		{"mesh", &r.meshProgram, shaders.MeshVertexShader, shaders.MeshFragmentShader, func(p uint32) {
			r.meshU = meshUniforms{
				model:      shader.GetUniform(p, "uModel"),
				projection: shader.GetUniform(p, "uProjection"),
				time:       shader.GetUniform(p, "uTime"),
				glow:       shader.GetUniform(p, "uGlowIntensity"),
				bias:       shader.GetUniform(p, "uGlowBias"),
				lightDir:   shader.GetUniform(p, "uLightDir"),
				lit:        shader.GetUniform(p, "uLit"),
			}
		}},
		{"bloom", &r.bloomProgram, shaders.QuadVertexShader, shaders.BloomFragmentShader, func(p uint32) {
			r.bloomU = bloomUniforms{
				scene:  shader.GetUniform(p, "uScene"),
				texel:  shader.GetUniform(p, "uTexel"),
				radius: shader.GetUniform(p, "uRadius"),
				scale:  shader.GetUniform(p, "uScale"),
			}
		}},
		{"transition", &r.transitionProgram, shaders.QuadVertexShader, shaders.TransitionFragmentShader, func(p uint32) {
			r.transitionU = transitionUniforms{
				frame:      shader.GetUniform(p, "uFrame"),
				resolution: shader.GetUniform(p, "uResolution"),
				pixelSize:  shader.GetUniform(p, "uPixelSize"),
				opacity:    shader.GetUniform(p, "uOpacity"),
			}
		}},
		{"points", &r.pointsProgram, shaders.PointsVertexShader, shaders.PointsFragmentShader, func(p uint32) {
			r.pointsU = pointsUniforms{
				model:      shader.GetUniform(p, "uModel"),
				projection: shader.GetUniform(p, "uProjection"),
				pointSize:  shader.GetUniform(p, "uPointSize"),
				time:       shader.GetUniform(p, "uTime"),
			}
		}},
		{"label", &r.labelProgram, shaders.LabelVertexShader, shaders.LabelFragmentShader, func(p uint32) {
			r.labelU = labelUniforms{
				rect: shader.GetUniform(p, "uRect"),
				tex:  shader.GetUniform(p, "uLabel"),
			}
		}},
	}

	for _, p := range programs {
		id, err := shader.CompileProgram(p.vert, p.frag)
		if err != nil {
			return fmt.Errorf("%s program: %w", p.name, err)
		}
		*p.dst = id
		p.resolved(id)
		logger.Debug("shader program created", zap.String("name", p.name), zap.Uint32("program", id))
	}
	return nil
}

func (r *Renderer) uploadMesh(setup scene.Setup) {
	m := setup.Mesh

	// Interleaved position + normal
	n := m.VertexCount()
	vertices := make([]float32, 0, n*6)
	for i := range n {
		p, nr := m.Position(i), m.Normal(i)
		vertices = append(vertices, p[0], p[1], p[2], nr[0], nr[1], nr[2])
	}

	gl.GenVertexArrays(1, &r.meshVAO)
	gl.BindVertexArray(r.meshVAO)

	gl.GenBuffers(1, &r.meshVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.meshVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.GenBuffers(1, &r.meshEBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.meshEBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)
	r.indexCount = int32(len(m.Indices))

	// Position attribute (location = 0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 6*4, nil)
	gl.EnableVertexAttribArray(0)

	// Normal attribute (location = 1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, 6*4, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)

	logger.Debug("mesh uploaded",
		zap.Int("vertices", n),
		zap.Int32("indices", r.indexCount),
	)
}

func (r *Renderer) createPoints(count int) {
	r.pointCount = count

	gl.GenVertexArrays(1, &r.pointsVAO)
	gl.BindVertexArray(r.pointsVAO)

	gl.GenBuffers(1, &r.pointsVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.pointsVBO)
	gl.BufferData(gl.ARRAY_BUFFER, count*3*4, nil, gl.DYNAMIC_DRAW)

	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
	gl.EnableVertexAttribArray(0)

	gl.BindVertexArray(0)
}

// Resize handles window resize. Offscreen targets are reallocated and the
// captured frame is dropped.
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = width, height
	if r.sceneFB != nil {
		r.sceneFB.Resize(width, height)
	}
	if r.captureFB != nil {
		r.captureFB.Resize(width, height)
	}
	r.captured = false
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Render draws one frame to the default framebuffer.
func (r *Renderer) Render(f *scene.Frame) error {
	if f.Effect.Frozen() && r.captured {
		r.drawFrozen(f.Effect)
		return r.checkError()
	}

	bloom := f.Bloom.Enabled && f.Bloom.Kernel > 0 && !r.flat
	if bloom {
		r.sceneFB.Bind()
		r.sceneFB.Clear(0, 0, 0, 0)
		r.drawScene(f)
		r.sceneFB.Unbind()
	}

	r.bindScreen()
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	if bloom {
		r.drawBloom(f.Bloom)
		// Sharp pass on top of the glow; the glow must not occlude it.
		gl.Clear(gl.DEPTH_BUFFER_BIT)
	}
	r.drawScene(f)
	r.drawLabels(f.Labels)

	if f.Effect.Policy == scene.PolicyPixelate {
		r.capture()
		if f.Effect.Frozen() {
			r.drawFrozen(f.Effect)
		}
	}

	return r.checkError()
}

func (r *Renderer) bindScreen() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(r.width), int32(r.height))
}

func (r *Renderer) drawScene(f *scene.Frame) {
	gl.Enable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	if r.flat {
		// Flat fill: the whole surface takes the rainbow colour of its centre.
		c := flatColor(f.Time)
		gl.ClearColor(c[0], c[1], c[2], 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)
	} else {
		r.drawMesh(f)
	}
	r.drawPoints(f)

	gl.BindVertexArray(0)
}

func (r *Renderer) drawMesh(f *scene.Frame) {
	gl.UseProgram(r.meshProgram)
	gl.UniformMatrix4fv(r.meshU.model, 1, false, f.Model.Ptr())
	gl.UniformMatrix4fv(r.meshU.projection, 1, false, f.Projection.Ptr())
	gl.Uniform1f(r.meshU.time, f.Material.Time)
	gl.Uniform1f(r.meshU.glow, f.Material.GlowIntensity)
	gl.Uniform1f(r.meshU.bias, f.Material.GlowBias)
	l := f.Material.LightDir
	gl.Uniform3f(r.meshU.lightDir, l.X, l.Y, l.Z)
	lit := int32(0)
	if f.Material.Lit {
		lit = 1
	}
	gl.Uniform1i(r.meshU.lit, lit)

	gl.BindVertexArray(r.meshVAO)
	gl.DrawElements(gl.TRIANGLES, r.indexCount, gl.UNSIGNED_INT, nil)
}

func (r *Renderer) drawPoints(f *scene.Frame) {
	n := visiblePoints(f.Particles, r.pointCount)
	if n == 0 {
		return
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, r.pointsVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, n*3*4, unsafe.Pointer(&f.Particles[0]))

	gl.UseProgram(r.pointsProgram)
	gl.UniformMatrix4fv(r.pointsU.model, 1, false, f.Model.Ptr())
	gl.UniformMatrix4fv(r.pointsU.projection, 1, false, f.Projection.Ptr())
	gl.Uniform1f(r.pointsU.pointSize, f.PointSize)
	gl.Uniform1f(r.pointsU.time, f.Time)

	gl.BindVertexArray(r.pointsVAO)
	gl.DrawArrays(gl.POINTS, 0, int32(n))
}

func (r *Renderer) drawBloom(b scene.Bloom) {
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	gl.UseProgram(r.bloomProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.sceneFB.ColorTexture())
	gl.Uniform1i(r.bloomU.scene, 0)
	gl.Uniform2f(r.bloomU.texel, 1/float32(r.width), 1/float32(r.height))
	gl.Uniform1i(r.bloomU.radius, int32(b.Kernel))
	scale := b.Scale
	if scale <= 0 {
		scale = 1
	}
	gl.Uniform1f(r.bloomU.scale, scale)

	gl.BindVertexArray(r.emptyVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

// capture copies the presented frame into the capture target.
func (r *Renderer) capture() {
	w, h := int32(r.width), int32(r.height)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, r.captureFB.FBO())
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	r.captured = true
}

func (r *Renderer) drawFrozen(e scene.Effect) {
	r.bindScreen()
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	gl.UseProgram(r.transitionProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.captureFB.ColorTexture())
	gl.Uniform1i(r.transitionU.frame, 0)
	gl.Uniform2f(r.transitionU.resolution, float32(r.width), float32(r.height))
	gl.Uniform1f(r.transitionU.pixelSize, max(e.PixelSize, 1))
	gl.Uniform1f(r.transitionU.opacity, e.Opacity)

	gl.BindVertexArray(r.emptyVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

func (r *Renderer) drawLabels(labels []scene.Label) {
	if len(labels) == 0 {
		return
	}
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.UseProgram(r.labelProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.Uniform1i(r.labelU.tex, 0)
	gl.BindVertexArray(r.emptyVAO)

	for _, l := range labels {
		if l.Image == nil || l.Rect.Empty() {
			continue
		}
		gl.BindTexture(gl.TEXTURE_2D, r.labelTexture(l.Image))
		x0, y0, x1, y1 := labelRectNDC(l.Rect, r.width, r.height)
		gl.Uniform4f(r.labelU.rect, x0, y0, x1, y1)
		gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	}

	gl.BindVertexArray(0)
	gl.Disable(gl.BLEND)
}

// labelTexture uploads a label image once and caches it by pointer.
func (r *Renderer) labelTexture(img *image.RGBA) uint32 {
	if tex, ok := r.labels[img]; ok {
		return tex
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(img.Rect.Dx()), int32(img.Rect.Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	r.labels[img] = tex
	return tex
}

// ReadPixels returns the last presented frame, bottom row first.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	r.capture()
	w, h := r.captureFB.Size()
	return r.captureFB.ReadPixels(), w, h
}

func (r *Renderer) checkError() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%x", code)
	}
	return nil
}

// Dispose releases every GL object. Safe on a partly initialised renderer.
func (r *Renderer) Dispose() {
	logger.Info("closing renderer")

	for _, p := range []*uint32{&r.meshProgram, &r.bloomProgram, &r.transitionProgram, &r.pointsProgram, &r.labelProgram} {
		if *p != 0 {
			gl.DeleteProgram(*p)
			*p = 0
		}
	}
	for _, vao := range []*uint32{&r.meshVAO, &r.pointsVAO, &r.emptyVAO} {
		if *vao != 0 {
			gl.DeleteVertexArrays(1, vao)
			*vao = 0
		}
	}
	for _, buf := range []*uint32{&r.meshVBO, &r.meshEBO, &r.pointsVBO} {
		if *buf != 0 {
			gl.DeleteBuffers(1, buf)
			*buf = 0
		}
	}
	for img, tex := range r.labels {
		gl.DeleteTextures(1, &tex)
		delete(r.labels, img)
	}
	if r.sceneFB != nil {
		r.sceneFB.Destroy()
		r.sceneFB = nil
	}
	if r.captureFB != nil {
		r.captureFB.Destroy()
		r.captureFB = nil
	}
}
