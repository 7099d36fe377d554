package imaging

import (
	"fmt"
	"image"
)

// ResizeToMatch reshapes a secondary reference image to the primary image's
// exact dimensions: first a centered crop to the primary's aspect ratio, then
// a nearest-neighbour scale. The result is PNG bytes.
func ResizeToMatch(secondary []byte, targetWidth, targetHeight int) ([]byte, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("target dimensions must be positive, got %dx%d", targetWidth, targetHeight)
	}

	img, err := Decode(secondary)
	if err != nil {
		return nil, err
	}

	cropped := centerCrop(img, targetWidth, targetHeight)
	scaled := scaleNearest(cropped, targetWidth, targetHeight)
	return encodePNG(scaled)
}

// centerCrop returns the largest centered sub-rectangle of img matching the
// target aspect ratio.
func centerCrop(img image.Image, targetWidth, targetHeight int) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	srcAspect := float64(srcWidth) / float64(srcHeight)
	targetAspect := float64(targetWidth) / float64(targetHeight)

	cropWidth := srcWidth
	cropHeight := srcHeight
	if srcAspect > targetAspect {
		// Source is wider: trim the sides.
		cropWidth = int(float64(srcHeight) * targetAspect)
	} else if srcAspect < targetAspect {
		// Source is taller: trim top and bottom.
		cropHeight = int(float64(srcWidth) / targetAspect)
	}
	if cropWidth < 1 {
		cropWidth = 1
	}
	if cropHeight < 1 {
		cropHeight = 1
	}

	x0 := bounds.Min.X + (srcWidth-cropWidth)/2
	y0 := bounds.Min.Y + (srcHeight-cropHeight)/2
	rect := image.Rect(x0, y0, x0+cropWidth, y0+cropHeight)

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	for y := 0; y < cropHeight; y++ {
		for x := 0; x < cropWidth; x++ {
			dst.Set(x, y, img.At(x0+x, y0+y))
		}
	}
	return dst
}

func scaleNearest(src image.Image, width, height int) *image.RGBA {
	bounds := src.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	xMap := make([]int, width)
	yMap := make([]int, height)
	for x := 0; x < width; x++ {
		xMap[x] = int(float64(x) * float64(srcWidth) / float64(width))
		if xMap[x] >= srcWidth {
			xMap[x] = srcWidth - 1
		}
	}
	for y := 0; y < height; y++ {
		yMap[y] = int(float64(y) * float64(srcHeight) / float64(height))
		if yMap[y] >= srcHeight {
			yMap[y] = srcHeight - 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dst.Set(x, y, src.At(bounds.Min.X+xMap[x], bounds.Min.Y+yMap[y]))
		}
	}
	return dst
}
