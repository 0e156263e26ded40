package models

import "time"

// DecisionRecord is one entry of the persisted decision log.
type DecisionRecord struct {
	RunID        string    `json:"run_id"`
	FrameNumber  int       `json:"frame_number"`
	Saved        bool      `json:"saved"`
	SavedPath    string    `json:"saved_path,omitempty"`
	Hash         uint64    `json:"hash"`
	HashDistance int       `json:"hash_distance"`
	MotionScore  int       `json:"motion_score"`
	SSIMScore    float64   `json:"ssim_score"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AnnotationWork is a saved keyframe queued for description.
type AnnotationWork struct {
	FramePath   string
	FrameNumber int
	Total       int
}

// Annotation is the result of describing a saved keyframe.
type Annotation struct {
	Frame   string `json:"frame"`
	Content string `json:"content"`
}

// FrameSearchResult is one hit of a perceptual-hash similarity search.
type FrameSearchResult struct {
	FrameNumber int
	FramePath   string
	Similarity  float64
}
