package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// Normalize downsamples img so that its longer side is at most maxSide pixels,
// preserving the aspect ratio. Images already within budget are returned as is;
// images are never upscaled.
func Normalize(img image.Image, maxSide int) image.Image {
	if img == nil || maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxSide {
		return img
	}

	// The longer side lands exactly on the budget; only the shorter one is scaled.
	scale := float64(maxSide) / float64(longer)
	newW, newH := maxSide, maxSide
	if w >= h {
		newH = int(float64(h) * scale)
	} else {
		newW = int(float64(w) * scale)
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
