package main

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/bdougie/framedup/internal/annotate"
	"github.com/bdougie/framedup/internal/config"
	"github.com/bdougie/framedup/internal/engine"
	"github.com/bdougie/framedup/internal/extractor"
	"github.com/bdougie/framedup/internal/frame"
	"github.com/bdougie/framedup/internal/metrics"
	"github.com/bdougie/framedup/internal/models"
	"github.com/bdougie/framedup/internal/pipeline"
	"github.com/bdougie/framedup/internal/storage"
)

// runtimeOpts are adapter-level settings, separate from the filter config.
type runtimeOpts struct {
	MetricsPort int    `env:"METRICS_PORT" envDefault:"0"`
	PGHost      string `env:"POSTGRES_HOST"`
	PGPort      string `env:"POSTGRES_PORT" envDefault:"5432"`
	PGUser      string `env:"POSTGRES_USER"`
	PGPassword  string `env:"POSTGRES_PASSWORD"`
	PGDBName    string `env:"POSTGRES_DB"`
}

func main() {
	ctx := context.Background()

	// Parse command line arguments
	videoPath := ""
	outputDir := ""
	configPath := ""
	fps := 2.0
	annotateFrames := false

	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--video":
			if i+1 < len(os.Args) {
				videoPath = os.Args[i+1]
				i++
			}
		case "--output":
			if i+1 < len(os.Args) {
				outputDir = os.Args[i+1]
				i++
			}
		case "--config":
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				i++
			}
		case "--fps":
			if i+1 < len(os.Args) {
				v, err := strconv.ParseFloat(os.Args[i+1], 64)
				if err != nil {
					log.Fatalf("invalid --fps value '%s'", os.Args[i+1])
				}
				fps = v
				i++
			}
		case "--annotate":
			annotateFrames = true
		}
	}

	if videoPath == "" {
		fmt.Println("Usage: framedup --video path/to/video.mp4 [--output dir] [--config file.yaml] [--fps n] [--annotate]")
		os.Exit(1)
	}

	// Load filter configuration from file or FILTER_* environment variables
	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if outputDir != "" {
		cfg.OutputFolder = outputDir
	}

	var opts runtimeOpts
	if err := env.Parse(&opts); err != nil {
		log.Fatalf("Failed to parse runtime options: %v", err)
	}

	// Configure logger
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	runID := uuid.NewString()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize dedup engine: %v", err)
	}
	adapter := pipeline.New(eng, logger)
	decisionLog := storage.NewDecisionLog(cfg.OutputFolder)

	var pg *storage.PostgresStorage
	if opts.PGHost != "" {
		pgConfig := storage.PostgresConfig{
			Host:     opts.PGHost,
			Port:     opts.PGPort,
			User:     opts.PGUser,
			Password: opts.PGPassword,
			DBName:   opts.PGDBName,
		}
		if err := storage.InitSchema(ctx, pgConfig); err != nil {
			log.Fatalf("Failed to initialize database schema: %v", err)
		}
		pg, err = storage.NewPostgresStorage(ctx, pgConfig, videoName)
		if err != nil {
			log.Fatalf("Failed to connect decision store: %v", err)
		}
		defer pg.Close()
	}

	if opts.MetricsPort > 0 {
		srv := metrics.StartServer(opts.MetricsPort, logger)
		defer srv.Close()
	}

	// Decode the video into frames, then run each one through the filter
	framePaths, err := extractor.ExtractFrames(videoPath, filepath.Join(cfg.OutputFolder, "ingest"), fps)
	if err != nil {
		log.Fatalf("Failed to extract frames: %v", err)
	}

	logger.Info("starting dedup run",
		"video", videoPath,
		"frames", len(framePaths),
		"run_id", runID,
		"output", cfg.OutputFolder,
	)

	// Frame timestamps follow the extraction rate so the time gate behaves
	// like it would on the live stream.
	start := time.Now()
	interval := time.Duration(float64(time.Second) / fps)

	var savedPaths []string
	for i, path := range framePaths {
		img, err := readJPEG(path)
		if err != nil {
			log.Fatalf("Failed to decode frame '%s': %v", path, err)
		}

		f := frame.New(img, "RGB")
		f.Data["source"] = path

		now := start.Add(time.Duration(i) * interval)
		_, decision, err := adapter.Process(frame.Channels{{Name: frame.PrimaryChannel, Frame: f}}, now)
		if err != nil {
			log.Fatalf("Dedup evaluation failed: %v", err)
		}
		if decision == nil {
			continue
		}

		rec := models.DecisionRecord{
			RunID:        runID,
			FrameNumber:  decision.FrameNumber,
			Saved:        decision.Saved,
			SavedPath:    decision.SavedPath,
			Hash:         decision.Hash,
			HashDistance: decision.HashDistance,
			MotionScore:  decision.MotionScore,
			SSIMScore:    decision.SSIMScore,
			Reason:       decision.Reason,
			Timestamp:    now,
		}
		if err := decisionLog.Add(rec); err != nil {
			log.Fatalf("Failed to record decision: %v", err)
		}
		if pg != nil {
			if err := pg.AddDecision(ctx, rec); err != nil {
				log.Fatalf("Failed to store decision: %v", err)
			}
		}
		if decision.Saved && decision.SavedPath != "" {
			savedPaths = append(savedPaths, decision.SavedPath)
		}
	}

	if err := decisionLog.Flush(); err != nil {
		log.Fatalf("Failed to flush decision log: %v", err)
	}

	state := eng.State()
	logger.Info("dedup run finished",
		"frames_seen", state.FrameCounter,
		"frames_saved", len(savedPaths),
	)

	if annotateFrames {
		visionAgent, err := annotate.NewAgent(ctx, logger)
		if err != nil {
			log.Fatalf("Failed to initialize vision agent: %v", err)
		}
		annotator := annotate.New(visionAgent, cfg.OutputFolder)
		if err := annotator.AnnotateFrames(ctx, savedPaths); err != nil {
			log.Printf("Error annotating keyframes: %v", err)
			os.Exit(1)
		}
	}

	fmt.Println("Dedup run completed successfully!")
}

func readJPEG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return jpeg.Decode(file)
}
