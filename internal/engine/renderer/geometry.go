package renderer

import (
	"image"

	"github.com/Faultbox/rainbow-overlay/internal/engine/shade"
	gmath "github.com/Faultbox/rainbow-overlay/pkg/math"
)

// labelRectNDC converts a top-left-origin pixel rectangle into NDC corners
// (x0, y0 bottom-left; x1, y1 top-right).
func labelRectNDC(rect image.Rectangle, width, height int) (x0, y0, x1, y1 float32) {
	w, h := float32(width), float32(height)
	x0 = 2*float32(rect.Min.X)/w - 1
	x1 = 2*float32(rect.Max.X)/w - 1
	y0 = 1 - 2*float32(rect.Max.Y)/h
	y1 = 1 - 2*float32(rect.Min.Y)/h
	return x0, y0, x1, y1
}

func flatColor(t float32) [3]float32 {
	return shade.BaseColor(gmath.Vec3{}, t)
}

// visiblePoints is how many xyz triples of particles fit a points buffer
// sized for capacity.
func visiblePoints(particles []float32, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return min(len(particles)/3, capacity)
}
