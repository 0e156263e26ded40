package extractor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExtractFrames decodes a video into JPEG frames at the given rate so they
// can be fed through the dedup engine. Frames land in a subfolder of
// outputDir named after the video. Returns the sorted frame paths.
func ExtractFrames(videoPath, outputDir string, fps float64) ([]string, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be > 0, got %g", fps)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	// Reuse frames from a previous run if any exist.
	if frames, err := listFrames(frameDirPath); err == nil && len(frames) > 0 {
		fmt.Printf("Frames already exist in %s. Skipping extraction. Found %d frames.\n", frameDirPath, len(frames))
		return frames, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %v", frameDirPath, err)
	}

	fmt.Printf("Extracting frames from '%s' to '%s' at %g fps...\n", videoPath, frameDirPath, fps)

	ffmpegCommand := exec.Command(
		"ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", fps),
		fmt.Sprintf("%s/input_%%06d.jpg", frameDirPath),
	)

	// Capture output for better error reporting
	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	frames, err := listFrames(frameDirPath)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted to '%s'", frameDirPath)
	}

	fmt.Printf("Successfully extracted %d frames to %s\n", len(frames), frameDirPath)
	return frames, nil
}

// listFrames returns the JPEG frame paths in dir in name order. ffmpeg's
// zero-padded numbering makes lexical order the frame order.
func listFrames(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %v", dir, err)
	}

	var frames []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			frames = append(frames, filepath.Join(dir, file.Name()))
		}
	}
	return frames, nil
}
