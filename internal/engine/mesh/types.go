// Package mesh builds the procedural geometry drawn by the overlay.
package mesh

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSegments is returned when a sphere is requested with fewer than one segment.
var ErrInvalidSegments = errors.New("segments must be >= 1")

// Kind selects which mesh the overlay draws.
type Kind int

const (
	KindSphere Kind = iota
	KindCube
)

// String returns the config name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCube:
		return "cube"
	default:
		return "sphere"
	}
}

// ParseKind converts a config value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sphere":
		return KindSphere, nil
	case "cube", "box":
		return KindCube, nil
	}
	return KindSphere, fmt.Errorf("unknown mesh kind %q", s)
}

// Mesh holds indexed triangle geometry ready for GPU upload.
// A Mesh is never modified after it is built.
type Mesh struct {
	Positions []float32 // xyz per vertex
	Normals   []float32 // xyz per vertex, parallel to Positions
	Indices   []uint32  // 3 per triangle
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Position returns vertex i's position.
func (m *Mesh) Position(i int) [3]float32 {
	return [3]float32{m.Positions[i*3], m.Positions[i*3+1], m.Positions[i*3+2]}
}

// Normal returns vertex i's normal.
func (m *Mesh) Normal(i int) [3]float32 {
	return [3]float32{m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2]}
}

// Validate checks the structural invariants of the mesh.
func (m *Mesh) Validate() error {
	if len(m.Positions)%3 != 0 {
		return fmt.Errorf("positions length %d is not a multiple of 3", len(m.Positions))
	}
	if len(m.Positions) != len(m.Normals) {
		return fmt.Errorf("positions/normals length mismatch: %d vs %d", len(m.Positions), len(m.Normals))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("indices length %d is not a multiple of 3", len(m.Indices))
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Build creates the mesh for the given kind.
// segments and yScale only apply to spheres.
func Build(kind Kind, segments int, yScale float32) (*Mesh, error) {
	if kind == KindCube {
		return Cube(), nil
	}
	return Sphere(segments, yScale)
}
