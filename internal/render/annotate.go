// Package render draws recognition results onto frames and relays them to viewers.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/facewatch/internal/types"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	borderWidth = 2
	labelHeight = 35
	textInset   = 6
)

var (
	boxColor  = color.RGBA{R: 255, A: 255}
	textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Copy returns an RGBA copy of img to annotate without touching the original.
func Copy(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// Caption is the text drawn under a face box.
func Caption(label string, distance float64) string {
	return fmt.Sprintf("%s (%.2f)", label, distance)
}

// Annotate draws the face box with a filled caption bar along its bottom edge.
// Drawing is clipped to the image.
func Annotate(dst draw.Image, box types.BoundingBox, label string, distance float64) {
	r := box.Rect().Canon()
	bounds := dst.Bounds()
	if r.Intersect(bounds).Empty() {
		return
	}
	src := image.NewUniform(boxColor)

	// Outline.
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+borderWidth),
		image.Rect(r.Min.X, r.Max.Y-borderWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+borderWidth, r.Max.Y),
		image.Rect(r.Max.X-borderWidth, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(bounds), src, image.Point{}, draw.Src)
	}

	bar := image.Rect(r.Min.X, r.Max.Y-labelHeight, r.Max.X, r.Max.Y).Intersect(bounds)
	draw.Draw(dst, bar, src, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X+textInset, r.Max.Y-textInset),
	}
	d.DrawString(Caption(label, distance))
}
