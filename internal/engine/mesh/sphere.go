package mesh

import (
	"fmt"
	"math"
)

// Sphere builds a latitude/longitude sphere of radius 1.
// The y axis is multiplied by yScale (<= 0 means 1) to squash it into an
// ellipsoid; normals divide it back out so they stay unit length.
// The seam at phi=0/2π is duplicated rather than shared.
func Sphere(segments int, yScale float32) (*Mesh, error) {
	if segments < 1 {
		return nil, fmt.Errorf("sphere: %w (got %d)", ErrInvalidSegments, segments)
	}
	if yScale <= 0 {
		yScale = 1
	}

	rows := segments + 1
	m := &Mesh{
		Positions: make([]float32, 0, rows*rows*3),
		Normals:   make([]float32, 0, rows*rows*3),
		Indices:   make([]uint32, 0, segments*segments*6),
	}

	for i := range rows {
		theta := float64(i) * math.Pi / float64(segments)
		sinTheta, cosTheta := math.Sin(theta), math.Cos(theta)

		for j := range rows {
			phi := float64(j) * 2 * math.Pi / float64(segments)
			sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)

			x := float32(cosPhi * sinTheta)
			y := float32(cosTheta) * yScale
			z := float32(sinPhi * sinTheta)

			m.Positions = append(m.Positions, x, y, z)
			m.Normals = append(m.Normals, x, y/yScale, z)
		}
	}

	for i := range segments {
		for j := range segments {
			first := uint32(i*rows + j)
			second := first + uint32(rows)
			m.Indices = append(m.Indices,
				first, second, first+1,
				second, second+1, first+1,
			)
		}
	}

	return m, nil
}
