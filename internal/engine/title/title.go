// Package title rasterises the overlay's clickable title and keeps its hit
// rectangle in surface coordinates.
package title

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Faultbox/rainbow-overlay/internal/engine/scene"
)

// CenterY is where the title's centre sits, as a fraction of surface height.
const CenterY = 0.2

// Title is a pre-rendered line of text.
type Title struct {
	text  string
	scale int
	img   *image.RGBA
	rect  image.Rectangle
}

// New rasterises text with basicfont.Face7x13. scale is the preferred
// integer magnification; Layout shrinks it when the surface is too narrow.
func New(text string, scale int, c color.RGBA) *Title {
	t := &Title{text: text, scale: max(scale, 1)}
	if text == "" {
		return t
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	t.img = image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  t.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	d.DrawString(text)
	return t
}

// Text returns the title string.
func (t *Title) Text() string {
	return t.text
}

// Image returns the unscaled rasterised text, or nil for an empty title.
func (t *Title) Image() *image.RGBA {
	return t.img
}

// Layout places the title for a surface size: horizontally centred, its
// centre at CenterY of the height. It returns the new hit rectangle.
func (t *Title) Layout(width, height int) image.Rectangle {
	if t.img == nil || width <= 0 || height <= 0 {
		t.rect = image.Rectangle{}
		return t.rect
	}

	iw, ih := t.img.Rect.Dx(), t.img.Rect.Dy()
	s := max(min(t.scale, width/iw), 1)
	w, h := iw*s, ih*s

	cx := width / 2
	cy := int(float64(height) * CenterY)
	t.rect = image.Rect(cx-w/2, cy-h/2, cx-w/2+w, cy-h/2+h)
	return t.rect
}

// Rect returns the hit rectangle from the last Layout.
func (t *Title) Rect() image.Rectangle {
	return t.rect
}

// Contains reports whether a surface point hits the title.
func (t *Title) Contains(x, y int) bool {
	return image.Pt(x, y).In(t.rect)
}

// Labels lays the title out and returns it as overlay labels.
func (t *Title) Labels(width, height int) []scene.Label {
	r := t.Layout(width, height)
	if r.Empty() {
		return nil
	}
	return []scene.Label{{Image: t.img, Rect: r}}
}
