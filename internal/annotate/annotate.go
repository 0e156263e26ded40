// Package annotate runs an optional description pass over the keyframes the
// dedup engine kept. Deduplication makes this affordable: only frames that
// actually changed the scene reach the vision model.
package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agent-api/core/agent"

	"github.com/bdougie/framedup/internal/models"
)

const maxWorkers = 4 // Adjust based on your CPU cores

// Annotator describes saved keyframes with a vision agent and writes the
// results next to the frames.
type Annotator struct {
	agent     *agent.Agent
	outputDir string
}

func New(a *agent.Agent, outputDir string) *Annotator {
	return &Annotator{
		agent:     a,
		outputDir: outputDir,
	}
}

// AnnotateFrames describes every frame path in framePaths and writes
// annotations.json to the output folder.
func (a *Annotator) AnnotateFrames(ctx context.Context, framePaths []string) error {
	if len(framePaths) == 0 {
		return nil
	}

	workChan := make(chan models.AnnotationWork, len(framePaths))
	resultsChan := make(chan models.Annotation, len(framePaths))
	errorsChan := make(chan error, len(framePaths))

	var wg sync.WaitGroup

	remaining := atomic.Int64{}
	remaining.Store(int64(len(framePaths)))

	// Start worker pool
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				content, err := a.describeImage(ctx, work.FramePath)
				if err != nil {
					errorsChan <- fmt.Errorf("keyframe %d/%d failed: %v", work.FrameNumber, work.Total, err)
					continue
				}

				resultsChan <- models.Annotation{
					Frame:   filepath.Base(work.FramePath),
					Content: content,
				}

				left := remaining.Add(-1)
				fmt.Printf("\rRemaining keyframes to describe: %d/%d", left, len(framePaths))
			}
		}()
	}

	// Send work to workers
	go func() {
		for i, path := range framePaths {
			workChan <- models.AnnotationWork{
				FramePath:   path,
				FrameNumber: i + 1,
				Total:       len(framePaths),
			}
		}
		close(workChan)
	}()

	// Collect results
	var annotations []models.Annotation
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for result := range resultsChan {
			annotations = append(annotations, result)
		}
	}()

	wg.Wait()
	close(resultsChan)
	close(errorsChan)
	collectWg.Wait()

	if err := a.writeAnnotations(annotations); err != nil {
		return fmt.Errorf("failed to write annotations: %v", err)
	}

	var errorMessages []string
	for err := range errorsChan {
		errorMessages = append(errorMessages, err.Error())
	}
	if len(errorMessages) > 0 {
		return fmt.Errorf("encountered errors during annotation: %v", strings.Join(errorMessages, "; "))
	}

	return nil
}

func (a *Annotator) describeImage(ctx context.Context, imagePath string) (string, error) {
	response, err := a.agent.Run(
		ctx,
		agent.WithInput("What is happening in this keyframe? Be specific about what distinguishes it from an ordinary frame of the scene."),
		agent.WithImagePath(imagePath),
	)
	if err != nil {
		return "", err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	return response.Messages[len(response.Messages)-1].Content, nil
}

func (a *Annotator) writeAnnotations(annotations []models.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	path := filepath.Join(a.outputDir, "annotations.json")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(annotations)
}
