package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framedup/internal/roi"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"FILTER_HASH_THRESHOLD", "FILTER_MOTION_THRESHOLD",
		"FILTER_MIN_TIME_BETWEEN_FRAMES", "FILTER_SSIM_THRESHOLD",
		"FILTER_ROI", "FILTER_OUTPUT_FOLDER", "FILTER_DEBUG",
		"FILTER_FORWARD_DEDUPED_FRAMES", "FILTER_FORWARD_UPSTREAM_DATA",
		"FILTER_SAVE_IMAGES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.HashThreshold)
	assert.Equal(t, 1200, cfg.MotionThreshold)
	assert.Equal(t, 1.0, cfg.MinTimeBetweenFrames)
	assert.Equal(t, 0.90, cfg.SSIMThreshold)
	assert.Nil(t, cfg.ROI)
	assert.Equal(t, "./output", cfg.OutputFolder)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.ForwardDedupedFrames)
	assert.True(t, cfg.ForwardUpstreamData)
	assert.True(t, cfg.SaveImages)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FILTER_HASH_THRESHOLD", "10")
	t.Setenv("FILTER_MOTION_THRESHOLD", "1500")
	t.Setenv("FILTER_MIN_TIME_BETWEEN_FRAMES", "2.0")
	t.Setenv("FILTER_SSIM_THRESHOLD", "0.85")
	t.Setenv("FILTER_ROI", "(100, 100, 200, 200)")
	t.Setenv("FILTER_OUTPUT_FOLDER", "/tmp/comprehensive_test")
	t.Setenv("FILTER_DEBUG", "true")
	t.Setenv("FILTER_FORWARD_DEDUPED_FRAMES", "true")
	t.Setenv("FILTER_FORWARD_UPSTREAM_DATA", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.HashThreshold)
	assert.Equal(t, 1500, cfg.MotionThreshold)
	assert.Equal(t, 2.0, cfg.MinTimeBetweenFrames)
	assert.Equal(t, 0.85, cfg.SSIMThreshold)
	require.NotNil(t, cfg.ROI)
	assert.Equal(t, roi.Rect{X: 100, Y: 100, Width: 200, Height: 200}, *cfg.ROI)
	assert.Equal(t, "/tmp/comprehensive_test", cfg.OutputFolder)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.ForwardDedupedFrames)
	assert.False(t, cfg.ForwardUpstreamData)
}

func TestUnrecognizedKeysIgnored(t *testing.T) {
	// Adapter/runtime keys and junk are not the core's business.
	t.Setenv("FILTER_SOURCES", "tcp://127.0.0.1:6000")
	t.Setenv("FILTER_OUTPUTS", "tcp://*:6002")
	t.Setenv("FILTER_ID", "filter_frame_dedup")
	t.Setenv("FILTER_BOGUS", "whatever")

	_, err := Load()
	require.NoError(t, err)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("FILTER_HASH_THRESHOLD", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseROI(t *testing.T) {
	r, err := ParseROI("(0, 0, 150, 300)")
	require.NoError(t, err)
	assert.Equal(t, roi.Rect{X: 0, Y: 0, Width: 150, Height: 300}, *r)

	r, err = ParseROI("10,20,30,40")
	require.NoError(t, err)
	assert.Equal(t, roi.Rect{X: 10, Y: 20, Width: 30, Height: 40}, *r)

	r, err = ParseROI("none")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseROI("")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = ParseROI("(2000, 2000, 100)")
	assert.Error(t, err, "three values are not a region")

	_, err = ParseROI("(a, b, c, d)")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Default(t.TempDir())
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative hash threshold", func(c *Config) { c.HashThreshold = -1 }},
		{"negative motion threshold", func(c *Config) { c.MotionThreshold = -5 }},
		{"negative min time", func(c *Config) { c.MinTimeBetweenFrames = -0.1 }},
		{"ssim below range", func(c *Config) { c.SSIMThreshold = -0.01 }},
		{"ssim above range", func(c *Config) { c.SSIMThreshold = 1.01 }},
		{"empty output folder", func(c *Config) { c.OutputFolder = "" }},
		{"zero-width roi", func(c *Config) { c.ROI = &roi.Rect{X: 0, Y: 0, Width: 0, Height: 10} }},
		{"negative roi origin", func(c *Config) { c.ROI = &roi.Rect{X: -1, Y: 0, Width: 10, Height: 10} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.HashThreshold = 0
	cfg.MotionThreshold = 0
	cfg.MinTimeBetweenFrames = 0
	cfg.SSIMThreshold = 0
	require.NoError(t, cfg.Validate())

	cfg.SSIMThreshold = 1
	require.NoError(t, cfg.Validate())
}

func TestMinInterval(t *testing.T) {
	cfg := Default(".")
	cfg.MinTimeBetweenFrames = 0.1
	assert.Equal(t, 100*time.Millisecond, cfg.MinInterval())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framedup.yaml")
	yaml := `
hash_threshold: 3
motion_threshold: 1000
min_time_between_frames: 0.5
ssim_threshold: 0.85
roi:
  x: 100
  y: 100
  width: 200
  height: 200
output_folder: /tmp/yaml_test
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.HashThreshold)
	assert.Equal(t, 1000, cfg.MotionThreshold)
	assert.Equal(t, 0.5, cfg.MinTimeBetweenFrames)
	assert.Equal(t, 0.85, cfg.SSIMThreshold)
	require.NotNil(t, cfg.ROI)
	assert.Equal(t, 200, cfg.ROI.Width)
	assert.Equal(t, "/tmp/yaml_test", cfg.OutputFolder)
	assert.True(t, cfg.Debug)
}

func TestLoadFileInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssim_threshold: 2.0\noutput_folder: /tmp/x\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
