// Package engine sequences the dedup cascade for one video stream: time gate
// and hash/motion fast reject, then SSIM against the last saved frame, then
// persistence of accepted frames. One Engine owns one stream's state and must
// be called sequentially; it has no internal locking.
package engine

import (
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/frame"
	"github.com/bdougie/framedup/internal/metrics"
	"github.com/bdougie/framedup/internal/phash"
	"github.com/bdougie/framedup/internal/roi"
	"github.com/bdougie/framedup/internal/ssim"
)

const jpegQuality = 90

// State is the per-stream mutable state. Counters advance on every
// evaluation regardless of outcome; the saved baseline advances only when a
// frame is persisted.
type State struct {
	FrameCounter          int
	ProcessedFrameCounter int
	LastSavedImage        image.Image
	LastSavedTime         time.Time
}

// Decision is the outcome of evaluating one frame.
type Decision struct {
	Saved       bool   `json:"saved"`
	FrameNumber int    `json:"frame_number"`
	SavedPath   string `json:"saved_path,omitempty"`

	Hash         uint64  `json:"hash"`
	HashDistance int     `json:"hash_distance"`
	MotionScore  int     `json:"motion_score"`
	SSIMScore    float64 `json:"ssim_score"`
	FirstFrame   bool    `json:"first_frame,omitempty"`

	// Reason names the cascade stage that dropped the frame; empty when
	// saved.
	Reason string `json:"reason,omitempty"`
}

// Engine is the dedup decision engine for a single stream.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	hash *phash.Comparator
	ssim *ssim.Comparator

	state State
}

// New builds an engine for cfg and makes sure the output folder exists.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputFolder, 0755); err != nil {
		return nil, fmt.Errorf("create output folder '%s': %w", cfg.OutputFolder, err)
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		hash:   phash.New(cfg),
		ssim:   ssim.New(cfg),
	}, nil
}

// State returns a snapshot of the engine state.
func (e *Engine) State() State {
	return e.state
}

// Config returns the engine's configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Evaluate runs one frame through the cascade and returns the decision. The
// counters and the hash/motion baseline advance even when the frame is
// dropped or a later step fails; a failed step never rolls them back.
func (e *Engine) Evaluate(f *frame.Frame, now time.Time) (Decision, error) {
	start := time.Now()

	e.state.FrameCounter++
	e.state.ProcessedFrameCounter++
	metrics.FramesSeenTotal.Inc()
	defer func() {
		metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	}()

	d := Decision{FrameNumber: e.state.FrameCounter}

	img, err := roi.Extract(f.Image, e.cfg.ROI)
	if err != nil {
		return d, fmt.Errorf("frame %d: %w", d.FrameNumber, err)
	}

	candidate, m, err := e.hash.ShouldProcess(img, e.state.LastSavedTime, now)
	if err != nil {
		return d, fmt.Errorf("frame %d: %w", d.FrameNumber, err)
	}
	d.Hash = m.Hash
	d.HashDistance = m.HashDistance
	d.MotionScore = m.MotionScore
	d.FirstFrame = m.FirstFrame

	if !candidate {
		d.Reason = metrics.StageHashMotion
		metrics.FramesDroppedTotal.WithLabelValues(metrics.StageHashMotion).Inc()
		e.debugLog("frame rejected by hash/motion gate", d)
		return d, nil
	}

	save, score := e.ssim.ShouldSave(img, e.state.LastSavedImage)
	d.SSIMScore = score
	metrics.SSIMScore.Observe(score)

	if !save {
		d.Reason = metrics.StageSSIM
		metrics.FramesDroppedTotal.WithLabelValues(metrics.StageSSIM).Inc()
		e.debugLog("frame too similar to last saved", d)
		return d, nil
	}

	path := filepath.Join(e.cfg.OutputFolder, fmt.Sprintf("frame_%06d.jpg", d.FrameNumber))
	if e.cfg.SaveImages {
		if err := writeJPEG(path, f.Image); err != nil {
			return d, fmt.Errorf("frame %d: %w", d.FrameNumber, err)
		}
		d.SavedPath = path
	}

	// Saved baseline: the ROI view of this frame, so later candidates
	// compare against the same geometry.
	e.state.LastSavedImage = img
	e.state.LastSavedTime = now

	d.Saved = true
	metrics.FramesSavedTotal.Inc()
	e.debugLog("frame saved", d)
	return d, nil
}

func (e *Engine) debugLog(msg string, d Decision) {
	if !e.cfg.Debug || e.logger == nil {
		return
	}
	e.logger.Debug(msg,
		"frame", d.FrameNumber,
		"hash_distance", d.HashDistance,
		"motion_score", d.MotionScore,
		"ssim_score", d.SSIMScore,
		"saved", d.Saved,
	)
}

func writeJPEG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file '%s': %w", path, err)
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		file.Close()
		return fmt.Errorf("encode frame '%s': %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close frame file '%s': %w", path, err)
	}
	return nil
}
