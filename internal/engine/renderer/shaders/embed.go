// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms the sphere/cube and passes object, normal and
// view-space positions to the fragment stage.
//
//go:embed mesh.vert
var MeshVertexShader string

// MeshFragmentShader is the rainbow rim-glow shading model.
//
//go:embed mesh.frag
var MeshFragmentShader string

// QuadVertexShader draws a full-screen triangle for post-process passes.
//
//go:embed quad.vert
var QuadVertexShader string

// BloomFragmentShader is the uniform-weight box blur.
//
//go:embed bloom.frag
var BloomFragmentShader string

// TransitionFragmentShader pixelates and fades a captured frame.
//
//go:embed transition.frag
var TransitionFragmentShader string

// PointsVertexShader is the vertex shader for the particle cloud.
//
//go:embed points.vert
var PointsVertexShader string

// PointsFragmentShader is the fragment shader for the particle cloud.
//
//go:embed points.frag
var PointsFragmentShader string

// LabelVertexShader places a textured quad in NDC.
//
//go:embed label.vert
var LabelVertexShader string

// LabelFragmentShader samples the label texture.
//
//go:embed label.frag
var LabelFragmentShader string
