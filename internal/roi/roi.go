// Package roi crops a region of interest out of incoming frames so the
// similarity checks only look at the part of the scene that matters.
package roi

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// ErrInvalidROI reports a region that does not fit the frame it was applied
// to. The wrapped message names the violated bound.
var ErrInvalidROI = errors.New("invalid ROI")

// Rect is a region of interest in pixel coordinates, relative to the top-left
// corner of the frame.
type Rect struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X, r.Y, r.Width, r.Height)
}

// Validate checks the region's own geometry, independent of any frame.
func (r Rect) Validate() error {
	if r.Width <= 0 {
		return fmt.Errorf("%w: width must be > 0, got %d", ErrInvalidROI, r.Width)
	}
	if r.Height <= 0 {
		return fmt.Errorf("%w: height must be > 0, got %d", ErrInvalidROI, r.Height)
	}
	if r.X < 0 {
		return fmt.Errorf("%w: x must be >= 0, got %d", ErrInvalidROI, r.X)
	}
	if r.Y < 0 {
		return fmt.Errorf("%w: y must be >= 0, got %d", ErrInvalidROI, r.Y)
	}
	return nil
}

// Extract returns the sub-image of img covered by r. A nil region passes the
// frame through unchanged. The region must lie fully inside the frame; out of
// bounds regions fail rather than clamp.
func Extract(img image.Image, r *Rect) (image.Image, error) {
	if r == nil {
		return img, nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if r.X+r.Width > w {
		return nil, fmt.Errorf("%w: x+width %d exceeds image width %d", ErrInvalidROI, r.X+r.Width, w)
	}
	if r.Y+r.Height > h {
		return nil, fmt.Errorf("%w: y+height %d exceeds image height %d", ErrInvalidROI, r.Y+r.Height, h)
	}

	crop := image.Rect(b.Min.X+r.X, b.Min.Y+r.Y, b.Min.X+r.X+r.Width, b.Min.Y+r.Y+r.Height)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(crop), nil
	}

	// Fallback for image types without SubImage support.
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(out, out.Bounds(), img, crop.Min, draw.Src)
	return out, nil
}
