// Package ssim is the final stage of the dedup cascade: a structural
// similarity comparison between the candidate frame and the last frame that
// was actually persisted.
package ssim

import (
	"image"
	"math"

	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/imaging"
)

// Stabilization constants from the SSIM definition, for 8-bit dynamic range.
const (
	c1 = (0.01 * 255) * (0.01 * 255)
	c2 = (0.03 * 255) * (0.03 * 255)
)

// windowSize is the side of the square windows SSIM is averaged over.
const windowSize = 8

// Comparator scores candidates against the last saved frame. It is
// stateless; the saved baseline lives in the engine.
type Comparator struct {
	cfg config.Config
}

func New(cfg config.Config) *Comparator {
	return &Comparator{cfg: cfg}
}

// ShouldSave reports whether img is dissimilar enough from lastSaved to be
// worth persisting, along with the similarity score in [0,1]. A nil
// lastSaved always saves (first accepted candidate). A score at or above the
// threshold means "too similar": the threshold is exclusive on the save side.
func (c *Comparator) ShouldSave(img image.Image, lastSaved image.Image) (bool, float64) {
	if lastSaved == nil {
		return true, 0
	}
	score := Score(img, lastSaved)
	return score < c.cfg.SSIMThreshold, score
}

// Score computes the mean structural similarity between two images over
// grayscale. The reference is resized to the candidate's bounds first, so
// differing shapes (ROI or resolution changes between calls) compare cleanly.
func Score(img, ref image.Image) float64 {
	a := imaging.ToGray(img)
	b := imaging.ToGray(ref)

	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	b = imaging.ResizeGray(b, w, h)

	if w == 0 || h == 0 {
		return 1
	}

	var total float64
	var windows int
	for y := 0; y < h; y += windowSize {
		for x := 0; x < w; x += windowSize {
			ww := min(windowSize, w-x)
			wh := min(windowSize, h-y)
			total += windowSSIM(a, b, x, y, ww, wh)
			windows++
		}
	}

	// Anti-correlated windows can push the raw mean slightly outside [0,1];
	// the score contract is [0,1].
	score := total / float64(windows)
	return math.Min(1, math.Max(0, score))
}

// windowSSIM evaluates the SSIM formula over one window of both images.
func windowSSIM(a, b *image.Gray, x0, y0, w, h int) float64 {
	aMin, bMin := a.Bounds().Min, b.Bounds().Min
	n := float64(w * h)

	var sumA, sumB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sumA += float64(a.GrayAt(aMin.X+x0+x, aMin.Y+y0+y).Y)
			sumB += float64(b.GrayAt(bMin.X+x0+x, bMin.Y+y0+y).Y)
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			da := float64(a.GrayAt(aMin.X+x0+x, aMin.Y+y0+y).Y) - muA
			db := float64(b.GrayAt(bMin.X+x0+x, bMin.Y+y0+y).Y) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*muA*muB + c1) * (2*cov + c2)
	den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	return num / den
}
