// Package imaging holds the pixel-level helpers shared by the hash/motion
// and SSIM comparators: grayscale conversion and size alignment.
package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// ToGray converts img to 8-bit grayscale. Returns the input unchanged if it
// already is one.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// ResizeGray scales g to width x height with bilinear filtering. Returns the
// input unchanged if it already has the target size.
func ResizeGray(g *image.Gray, width, height int) *image.Gray {
	if g.Bounds().Dx() == width && g.Bounds().Dy() == height {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
	return out
}
