// Package pipeline adapts the dedup engine to a multi-channel frame flow:
// it routes the primary video channel through the engine, emits the optional
// deduped side channel, and forwards upstream channels according to the
// configured policy.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/engine"
	"github.com/bdougie/framedup/internal/frame"
)

// Adapter wraps one engine instance. Like the engine it serializes nothing
// itself; one adapter serves one stream.
type Adapter struct {
	engine *engine.Engine
	cfg    config.Config
	logger *slog.Logger
}

func New(eng *engine.Engine, logger *slog.Logger) *Adapter {
	return &Adapter{
		engine: eng,
		cfg:    eng.Config(),
		logger: logger,
	}
}

// Process routes one call's channels. The primary channel is evaluated and
// always forwarded untouched, first in the output whatever the input order.
// A call without a primary frame is a no-op: the input passes through and no
// state advances.
func (a *Adapter) Process(in frame.Channels, now time.Time) (frame.Channels, *engine.Decision, error) {
	primary := in.Primary()
	if primary == nil || primary.Image == nil {
		a.debugLog("call without a primary frame, passing through", "channels", len(in))
		return in, nil, nil
	}

	d, err := a.engine.Evaluate(primary, now)
	if err != nil {
		return nil, nil, err
	}

	out := frame.Channels{{Name: frame.PrimaryChannel, Frame: primary}}

	if a.cfg.ForwardDedupedFrames {
		out = append(out, frame.Channel{
			Name:  frame.DedupedChannel,
			Frame: dedupedFrame(primary, d),
		})
	}

	if a.cfg.ForwardUpstreamData {
		for _, ch := range in {
			if ch.Name == frame.PrimaryChannel || ch.Name == frame.DedupedChannel {
				continue
			}
			out = append(out, ch)
		}
	}

	a.debugLog("routed channels",
		"frame", d.FrameNumber,
		"saved", d.Saved,
		"out", len(out),
	)
	return out, &d, nil
}

func (a *Adapter) debugLog(msg string, args ...any) {
	if !a.cfg.Debug || a.logger == nil {
		return
	}
	a.logger.Debug(msg, args...)
}

// dedupedFrame builds the side-channel frame: the primary image with the
// decision's metadata attached.
func dedupedFrame(primary *frame.Frame, d engine.Decision) *frame.Frame {
	data := primary.CloneData()
	data["deduped"] = true
	data["frame_number"] = d.FrameNumber
	data["saved"] = d.Saved
	if d.SavedPath != "" {
		data["saved_path"] = d.SavedPath
	}
	data["hash_distance"] = d.HashDistance
	data["motion_score"] = d.MotionScore
	data["ssim_score"] = d.SSIMScore

	return &frame.Frame{
		Image:  primary.Image,
		Format: primary.Format,
		Data:   data,
	}
}
