package engine

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/frame"
	"github.com/bdougie/framedup/internal/metrics"
	"github.com/bdougie/framedup/internal/roi"
)

func solidFrame(w, h int, c color.RGBA) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return frame.New(img, "RGB")
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.MinTimeBetweenFrames = 0.1
	return cfg
}

func savedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jpg" {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestFirstFrameAlwaysSaved(t *testing.T) {
	cfg := testConfig(t)
	// Thresholds nothing could clear; the fresh-engine rule wins anyway.
	cfg.HashThreshold = 1000
	cfg.MotionThreshold = 1 << 30
	cfg.SSIMThreshold = 1.0

	eng, err := New(cfg, nil)
	require.NoError(t, err)

	d, err := eng.Evaluate(solidFrame(200, 200, red), time.Now())
	require.NoError(t, err)

	assert.True(t, d.Saved)
	assert.Equal(t, 1, d.FrameNumber)
	assert.FileExists(t, d.SavedPath)
	assert.NotZero(t, eng.State().LastSavedTime)
	assert.NotNil(t, eng.State().LastSavedImage)
}

func TestScenarioCountersAlwaysAdvance(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, nil)
	require.NoError(t, err)

	t0 := time.Now()

	// Frame A at t=0: saved, frame 1.
	d, err := eng.Evaluate(solidFrame(200, 200, red), t0)
	require.NoError(t, err)
	assert.True(t, d.Saved)
	assert.Equal(t, 1, d.FrameNumber)

	// Frame A again at t=0.05: inside the time gate and identical.
	d, err = eng.Evaluate(solidFrame(200, 200, red), t0.Add(50*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, d.Saved)
	assert.Equal(t, 2, d.FrameNumber)

	// Frame B at t=0.3: different, outside the gate; counter advanced on
	// the dropped call too.
	d, err = eng.Evaluate(solidFrame(200, 200, green), t0.Add(300*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, d.Saved)
	assert.Equal(t, 3, d.FrameNumber)
	assert.Equal(t, filepath.Join(cfg.OutputFolder, "frame_000003.jpg"), d.SavedPath)

	assert.Equal(t, 3, eng.State().FrameCounter)
	assert.Equal(t, 3, eng.State().ProcessedFrameCounter)
	assert.Len(t, savedFiles(t, cfg.OutputFolder), 2)
}

func TestIdenticalFramesNeverSaveTwice(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, nil)
	require.NoError(t, err)

	t0 := time.Now()
	for i := 0; i < 5; i++ {
		_, err := eng.Evaluate(solidFrame(200, 200, red), t0.Add(time.Duration(i)*10*time.Millisecond))
		require.NoError(t, err)
	}

	assert.Len(t, savedFiles(t, cfg.OutputFolder), 1)
}

func TestTimeGateBeatsDissimilarity(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinTimeBetweenFrames = 10

	eng, err := New(cfg, nil)
	require.NoError(t, err)

	t0 := time.Now()
	d, err := eng.Evaluate(solidFrame(200, 200, red), t0)
	require.NoError(t, err)
	require.True(t, d.Saved)

	d, err = eng.Evaluate(solidFrame(200, 200, green), t0.Add(time.Second))
	require.NoError(t, err)

	assert.False(t, d.Saved)
	assert.Equal(t, metrics.StageHashMotion, d.Reason)
}

func TestShortCircuitSkipsSSIM(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, nil)
	require.NoError(t, err)

	t0 := time.Now()
	_, err = eng.Evaluate(solidFrame(200, 200, red), t0)
	require.NoError(t, err)

	// Identical frame: rejected by the fast gate, SSIM never runs.
	d, err := eng.Evaluate(solidFrame(200, 200, red), t0.Add(time.Second))
	require.NoError(t, err)

	assert.False(t, d.Saved)
	assert.Equal(t, metrics.StageHashMotion, d.Reason)
	assert.Zero(t, d.SSIMScore)
}

func TestROIRestrictsComparison(t *testing.T) {
	cfg := testConfig(t)
	cfg.ROI = &roi.Rect{X: 0, Y: 0, Width: 50, Height: 50}

	eng, err := New(cfg, nil)
	require.NoError(t, err)

	t0 := time.Now()
	d, err := eng.Evaluate(solidFrame(200, 200, red), t0)
	require.NoError(t, err)
	require.True(t, d.Saved)

	// Change pixels only outside the region: invisible to the engine.
	f := solidFrame(200, 200, red)
	img := f.Image.(*image.RGBA)
	for y := 100; y < 200; y++ {
		for x := 100; x < 200; x++ {
			img.SetRGBA(x, y, green)
		}
	}
	d, err = eng.Evaluate(f, t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, d.Saved)
}

func TestGeometryErrorDoesNotCorruptState(t *testing.T) {
	cfg := testConfig(t)
	cfg.ROI = &roi.Rect{X: 2000, Y: 2000, Width: 100, Height: 100}

	eng, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = eng.Evaluate(solidFrame(200, 200, red), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, roi.ErrInvalidROI)

	// Counters advanced before the failing step and stay advanced.
	assert.Equal(t, 1, eng.State().FrameCounter)
	assert.Empty(t, savedFiles(t, cfg.OutputFolder))

	_, err = eng.Evaluate(solidFrame(200, 200, red), time.Now())
	require.Error(t, err)
	assert.Equal(t, 2, eng.State().FrameCounter)
}

func TestWriteFailureSurfaces(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, nil)
	require.NoError(t, err)

	// Knock the output folder out from under the engine.
	require.NoError(t, os.RemoveAll(cfg.OutputFolder))

	_, err = eng.Evaluate(solidFrame(200, 200, red), time.Now())
	require.Error(t, err)

	// No save happened, so the saved baseline is still empty, but the
	// counters moved.
	assert.Equal(t, 1, eng.State().FrameCounter)
	assert.Nil(t, eng.State().LastSavedImage)
	assert.True(t, eng.State().LastSavedTime.IsZero())

	// The next call works once the folder is back.
	require.NoError(t, os.MkdirAll(cfg.OutputFolder, 0755))
	d, err := eng.Evaluate(solidFrame(200, 200, green), time.Now())
	require.NoError(t, err)
	assert.True(t, d.Saved)
	assert.Equal(t, 2, d.FrameNumber)
}

func TestSaveImagesDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveImages = false

	eng, err := New(cfg, nil)
	require.NoError(t, err)

	d, err := eng.Evaluate(solidFrame(200, 200, red), time.Now())
	require.NoError(t, err)

	assert.True(t, d.Saved)
	assert.Empty(t, d.SavedPath)
	assert.Empty(t, savedFiles(t, cfg.OutputFolder))
	assert.NotNil(t, eng.State().LastSavedImage)
}

func TestInvalidConfigRejectedAtConstruction(t *testing.T) {
	cfg := testConfig(t)
	cfg.SSIMThreshold = 1.5

	_, err := New(cfg, nil)
	require.Error(t, err)
}
