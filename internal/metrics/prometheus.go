package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesSeenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedup_frames_seen_total",
		Help: "Total number of frames evaluated by the dedup engine",
	})

	FramesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedup_frames_saved_total",
		Help: "Total number of frames accepted and persisted",
	})

	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framedup_frames_dropped_total",
		Help: "Total number of frames dropped, by cascade stage",
	}, []string{"stage"})

	SSIMScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framedup_ssim_score",
		Help:    "Structural similarity of candidates against the last saved frame",
		Buckets: []float64{0.1, 0.25, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
	})

	EvaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framedup_evaluate_duration_seconds",
		Help:    "Duration of one dedup evaluation",
		Buckets: prometheus.DefBuckets,
	})
)

// Drop stages recorded in FramesDroppedTotal.
const (
	StageHashMotion = "hash_motion"
	StageSSIM       = "ssim"
)
