package shade

import (
	"image"
)

// BoxBlur averages each texel with its (2r+1)^2 neighbourhood using uniform
// weight 1/(2r+1)^2. Samples outside the image clamp to the nearest edge,
// matching CLAMP_TO_EDGE on the GPU.
func BoxBlur(src *image.RGBA, radius int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	if radius <= 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	w, h := b.Dx(), b.Dy()
	n := (2*radius + 1) * (2*radius + 1)

	for y := range h {
		for x := range w {
			var sum [4]int
			for dy := -radius; dy <= radius; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					o := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
					sum[0] += int(src.Pix[o])
					sum[1] += int(src.Pix[o+1])
					sum[2] += int(src.Pix[o+2])
					sum[3] += int(src.Pix[o+3])
				}
			}
			o := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := range 4 {
				dst.Pix[o+c] = uint8((sum[c] + n/2) / n)
			}
		}
	}
	return dst
}

// Pixelate snaps every pixel to the top-left texel of its block, the same
// floor(uv*res/size)*size lookup the transition shader does.
func Pixelate(src *image.RGBA, block int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	if block <= 1 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	for y := range b.Dy() {
		sy := (y / block) * block
		for x := range b.Dx() {
			sx := (x / block) * block
			so := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			do := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
	return dst
}

// Fade scales every channel by opacity in place (image.RGBA is premultiplied).
func Fade(img *image.RGBA, opacity float32) {
	if opacity >= 1 {
		return
	}
	if opacity < 0 {
		opacity = 0
	}
	for i := range img.Pix {
		img.Pix[i] = uint8(float32(img.Pix[i])*opacity + 0.5)
	}
}

// Composite draws src over dst (premultiplied source-over). Used to lay the
// sharp pass on top of the blurred glow.
func Composite(dst, src *image.RGBA) {
	n := min(len(dst.Pix), len(src.Pix))
	for i := 0; i+3 < n; i += 4 {
		inv := 255 - int(src.Pix[i+3])
		for c := range 4 {
			v := int(src.Pix[i+c]) + (int(dst.Pix[i+c])*inv+127)/255
			if v > 255 {
				v = 255
			}
			dst.Pix[i+c] = uint8(v)
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
