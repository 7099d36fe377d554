package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const watermarkMargin = 8

// Stamp overlays text in the bottom-right corner of an image over a
// translucent dark strip and returns the result as PNG bytes.
func Stamp(data []byte, text string) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()

	stripWidth := textWidth + 2*watermarkMargin
	stripHeight := textHeight + 2*watermarkMargin
	if stripWidth > bounds.Dx() {
		stripWidth = bounds.Dx()
	}
	if stripHeight > bounds.Dy() {
		stripHeight = bounds.Dy()
	}

	strip := image.Rect(
		dst.Bounds().Max.X-stripWidth,
		dst.Bounds().Max.Y-stripHeight,
		dst.Bounds().Max.X,
		dst.Bounds().Max.Y,
	)
	draw.Draw(dst, strip, &image.Uniform{color.NRGBA{0, 0, 0, 128}}, image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 220}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(strip.Min.X + watermarkMargin),
			Y: fixed.I(strip.Max.Y - watermarkMargin - face.Metrics().Descent.Ceil()),
		},
	}
	drawer.DrawString(text)

	return encodePNG(dst)
}
