package mesh

// cubeFaces lists each face as its normal and four corners (counter-clockwise
// seen from outside).
var cubeFaces = [6]struct {
	normal  [3]float32
	corners [4][3]float32
}{
	{[3]float32{0, 0, 1}, [4][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}, {1, -1, -1}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, -1}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}},
	{[3]float32{1, 0, 0}, [4][3]float32{{1, -1, -1}, {1, 1, -1}, {1, 1, 1}, {1, -1, 1}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}},
}

// Cube returns the fixed 24-vertex box spanning [-1, 1] on every axis.
// Each face owns its four vertices so normals stay axis-aligned.
func Cube() *Mesh {
	m := &Mesh{
		Positions: make([]float32, 0, 24*3),
		Normals:   make([]float32, 0, 24*3),
		Indices:   make([]uint32, 0, 36),
	}

	for f, face := range cubeFaces {
		for _, c := range face.corners {
			m.Positions = append(m.Positions, c[0], c[1], c[2])
			m.Normals = append(m.Normals, face.normal[0], face.normal[1], face.normal[2])
		}
		base := uint32(f * 4)
		m.Indices = append(m.Indices,
			base, base+1, base+2,
			base, base+2, base+3,
		)
	}

	return m
}
