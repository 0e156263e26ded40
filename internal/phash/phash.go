// Package phash is the fast-reject stage of the dedup cascade: a perceptual
// hash plus a motion score against the previous frame, combined with the
// minimum-time-between-saves gate. Frames that clear it are candidates for
// the more expensive SSIM comparison.
package phash

import (
	"fmt"
	"image"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/imaging"
)

// motionPixelDelta is the grayscale difference above which a pixel counts as
// changed when scoring motion.
const motionPixelDelta = 25

// Metrics reports what the comparator measured for one frame.
type Metrics struct {
	Hash         uint64 `json:"hash"`
	HashDistance int    `json:"hash_distance"`
	MotionScore  int    `json:"motion_score"`
	FirstFrame   bool   `json:"first_frame"`
}

// Comparator tracks the most recently seen frame. Its baseline advances on
// every evaluation, not only on saves: motion is measured against the frame
// immediately before this one, never against a stale saved reference.
type Comparator struct {
	cfg config.Config

	lastHash *goimagehash.ImageHash
	prevGray *image.Gray
}

func New(cfg config.Config) *Comparator {
	return &Comparator{cfg: cfg}
}

// LastHash returns the 64-bit hash of the most recently evaluated frame and
// whether one exists yet.
func (c *Comparator) LastHash() (uint64, bool) {
	if c.lastHash == nil {
		return 0, false
	}
	return c.lastHash.GetHash(), true
}

// ShouldProcess decides whether img is worth the SSIM stage. lastSavedTime is
// the engine's last persistence time (zero if nothing was ever saved); now is
// the evaluation clock. The internal baseline is updated regardless of the
// outcome.
func (c *Comparator) ShouldProcess(img image.Image, lastSavedTime time.Time, now time.Time) (bool, Metrics, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false, Metrics{}, fmt.Errorf("compute perceptual hash: %w", err)
	}
	gray := imaging.ToGray(img)

	// First frame seen: unconditional candidate.
	if c.lastHash == nil {
		c.lastHash = hash
		c.prevGray = gray
		return true, Metrics{Hash: hash.GetHash(), FirstFrame: true}, nil
	}

	distance, err := c.lastHash.Distance(hash)
	if err != nil {
		return false, Metrics{}, fmt.Errorf("compare perceptual hashes: %w", err)
	}
	motion := motionScore(c.prevGray, gray)

	m := Metrics{
		Hash:         hash.GetHash(),
		HashDistance: distance,
		MotionScore:  motion,
	}

	// Baseline always advances, independent of the decision.
	c.lastHash = hash
	c.prevGray = gray

	// The time gate is absolute: inside the minimum interval nothing is a
	// candidate, no matter how different it looks.
	if !lastSavedTime.IsZero() && now.Sub(lastSavedTime) < c.cfg.MinInterval() {
		return false, m, nil
	}

	candidate := distance > c.cfg.HashThreshold || motion > c.cfg.MotionThreshold
	return candidate, m, nil
}

// motionScore counts pixels whose grayscale value moved by more than
// motionPixelDelta between consecutive frames. The previous frame is resized
// if the shapes differ (ROI or source resolution may change between calls).
func motionScore(prev, cur *image.Gray) int {
	w, h := cur.Bounds().Dx(), cur.Bounds().Dy()
	prev = imaging.ResizeGray(prev, w, h)

	pMin, cMin := prev.Bounds().Min, cur.Bounds().Min
	changed := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := prev.GrayAt(pMin.X+x, pMin.Y+y).Y
			c := cur.GrayAt(cMin.X+x, cMin.Y+y).Y
			d := int(p) - int(c)
			if d < 0 {
				d = -d
			}
			if d > motionPixelDelta {
				changed++
			}
		}
	}
	return changed
}
