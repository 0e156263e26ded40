package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/framedup/internal/models"
)

const batchSize = 10 // Number of records to batch before writing

// DecisionLog appends decision records to a JSON log in the output folder,
// batching writes to keep the per-frame cost down.
type DecisionLog struct {
	records   []models.DecisionRecord
	mu        sync.Mutex
	outputDir string
}

// NewDecisionLog creates a log writing to outputDir/decisions.json.
func NewDecisionLog(outputDir string) *DecisionLog {
	return &DecisionLog{
		records:   []models.DecisionRecord{},
		outputDir: outputDir,
	}
}

// Add appends a record and flushes when the batch is full.
func (l *DecisionLog) Add(rec models.DecisionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)

	if len(l.records) >= batchSize {
		return l.flush()
	}
	return nil
}

// Flush writes all pending records to disk.
func (l *DecisionLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

func (l *DecisionLog) flush() error {
	if len(l.records) == 0 {
		return nil
	}

	logPath := filepath.Join(l.outputDir, "decisions.json")

	var existing []models.DecisionRecord
	if data, err := os.ReadFile(logPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing decision log: %w", err)
		}
	}

	all := append(existing, l.records...)

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for decision log: %w", err)
	}

	file, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return err
	}

	l.records = nil
	return nil
}
