// Package shade evaluates the overlay's fragment model on the CPU.
//
// The GLSL programs in the renderer implement the same formulas; this
// package is what the software backend draws with and what the tests check
// the numbers against.
package shade

import (
	"math"

	gmath "github.com/Faultbox/rainbow-overlay/pkg/math"
)

// DefaultGlowBias is the rim threshold: surfaces facing the viewer more than
// this (dot > bias) get no glow.
const DefaultGlowBias = 0.6

// Channel phase offsets in radians for R, G, B.
var phases = [3]float64{0, 2, 4}

// BaseColor returns the time-varying rainbow colour tied to an object-space
// position: 0.5 + 0.5*sin(component + t + phase) per channel.
func BaseColor(pos gmath.Vec3, t float32) [3]float32 {
	comps := [3]float32{pos.X, pos.Y, pos.Z}
	var c [3]float32
	for i := range 3 {
		c[i] = float32(0.5 + 0.5*math.Sin(float64(comps[i])+float64(t)+phases[i]))
	}
	return c
}

// Rim returns the glow intensity for a fragment:
// pow(max(bias - dot(n, normalize(-viewPos)), 0), 2) * intensity.
func Rim(normal, viewPos gmath.Vec3, bias, intensity float32) float32 {
	n := normal.Normalize()
	toEye := viewPos.Scale(-1).Normalize()
	k := bias - n.Dot(toEye)
	if k < 0 {
		k = 0
	}
	return k * k * intensity
}

// Diffuse returns max(dot(n, normalize(lightDir)), 0).
func Diffuse(normal, lightDir gmath.Vec3) float32 {
	d := normal.Normalize().Dot(lightDir.Normalize())
	if d < 0 {
		return 0
	}
	return d
}

// Material holds the uniforms of the mesh program.
type Material struct {
	Time          float32
	GlowIntensity float32
	GlowBias      float32
	LightDir      gmath.Vec3
	Lit           bool // apply the diffuse term
}

// Fragment shades one fragment. objPos is the object-space position the
// rainbow is keyed on, viewPos the view-space position the rim uses.
func (m Material) Fragment(objPos, normal, viewPos gmath.Vec3) [3]float32 {
	c := BaseColor(objPos, m.Time)
	if m.Lit {
		k := 0.5 + 0.5*Diffuse(normal, m.LightDir)
		c = [3]float32{c[0] * k, c[1] * k, c[2] * k}
	}
	rim := Rim(normal, viewPos, m.GlowBias, m.GlowIntensity)
	return [3]float32{c[0] * rim, c[1] * rim, c[2] * rim}
}

// ToByte converts a [0, 1] channel to 0..255, clamping out-of-range values.
func ToByte(v float32) uint8 {
	v = gmath.Clamp(v, 0, 1)
	return uint8(v*255 + 0.5)
}
