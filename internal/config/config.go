// Package config carries the validated dedup filter configuration. A Config
// is built once, either from FILTER_* environment variables or from a YAML
// file, and is immutable afterwards; anything malformed fails construction
// instead of being coerced.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/bdougie/framedup/internal/roi"
)

// Config holds every knob the dedup engine and its adapter honor. Env keys
// match the original FILTER_* convention; unknown environment variables and
// runtime-infrastructure keys are ignored because only the declared tags are
// read.
type Config struct {
	HashThreshold        int     `env:"FILTER_HASH_THRESHOLD" envDefault:"5" yaml:"hash_threshold"`
	MotionThreshold      int     `env:"FILTER_MOTION_THRESHOLD" envDefault:"1200" yaml:"motion_threshold"`
	MinTimeBetweenFrames float64 `env:"FILTER_MIN_TIME_BETWEEN_FRAMES" envDefault:"1.0" yaml:"min_time_between_frames"`
	SSIMThreshold        float64 `env:"FILTER_SSIM_THRESHOLD" envDefault:"0.90" yaml:"ssim_threshold"`

	// RawROI is the env-var spelling of the region, e.g. "(0, 0, 150, 300)"
	// or "none". It is resolved into ROI during Load.
	RawROI string    `env:"FILTER_ROI" yaml:"-"`
	ROI    *roi.Rect `env:"-" yaml:"roi"`

	OutputFolder string `env:"FILTER_OUTPUT_FOLDER" envDefault:"./output" yaml:"output_folder"`

	Debug                bool `env:"FILTER_DEBUG" envDefault:"false" yaml:"debug"`
	ForwardDedupedFrames bool `env:"FILTER_FORWARD_DEDUPED_FRAMES" envDefault:"false" yaml:"forward_deduped_frames"`
	ForwardUpstreamData  bool `env:"FILTER_FORWARD_UPSTREAM_DATA" envDefault:"true" yaml:"forward_upstream_data"`
	SaveImages           bool `env:"FILTER_SAVE_IMAGES" envDefault:"true" yaml:"save_images"`
}

// Default returns the documented default configuration with output going to
// folder.
func Default(folder string) Config {
	return Config{
		HashThreshold:        5,
		MotionThreshold:      1200,
		MinTimeBetweenFrames: 1.0,
		SSIMThreshold:        0.90,
		OutputFolder:         folder,
		ForwardUpstreamData:  true,
		SaveImages:           true,
	}
}

// Load builds a Config from FILTER_* environment variables, falling back to
// the documented defaults, and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	r, err := ParseROI(cfg.RawROI)
	if err != nil {
		return Config{}, err
	}
	cfg.ROI = r

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile builds a Config from a YAML file. Fields absent from the file keep
// the documented defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default("./output")

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every numeric bound once, up front. A config that passes
// never raises a configuration error mid-stream.
func (c Config) Validate() error {
	if c.HashThreshold < 0 {
		return fmt.Errorf("config: hash_threshold must be >= 0, got %d", c.HashThreshold)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("config: motion_threshold must be >= 0, got %d", c.MotionThreshold)
	}
	if c.MinTimeBetweenFrames < 0 {
		return fmt.Errorf("config: min_time_between_frames must be >= 0, got %g", c.MinTimeBetweenFrames)
	}
	if c.SSIMThreshold < 0 || c.SSIMThreshold > 1 {
		return fmt.Errorf("config: ssim_threshold must be in [0,1], got %g", c.SSIMThreshold)
	}
	if c.OutputFolder == "" {
		return fmt.Errorf("config: output_folder is required")
	}
	if c.ROI != nil {
		if err := c.ROI.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// MinInterval is the time gate between saves as a duration.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinTimeBetweenFrames * float64(time.Second))
}

// ParseROI parses the env-var region spelling: "(x, y, w, h)" with optional
// parentheses and spaces. Empty and "none" mean no region. Exactly four
// integer fields are required; anything else is a configuration error.
func ParseROI(s string) (*roi.Rect, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}

	trimmed := strings.Trim(s, "()")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("config: roi must have 4 values (x, y, width, height), got %q", s)
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("config: roi value %q is not an integer in %q", strings.TrimSpace(p), s)
		}
		vals[i] = v
	}

	return &roi.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
