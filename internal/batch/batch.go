// Package batch runs pattern matching over many images with a bounded worker
// pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/roikit/internal/matcher"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers images under paths and matches the configured
// pattern inside the search ROI of each. Results keep discovery order.
func ProcessBatch(ctx context.Context, paths []string, m *matcher.Matcher, cfg *Config) (*Result, error) {
	if m == nil {
		return nil, errors.New("batch: no matcher")
	}
	if err := m.Available(); err != nil {
		return nil, err
	}

	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	var ref image.Image
	if cfg.ReferencePath != "" {
		ref, _, err = loadAndValidateImage(cfg.ReferencePath)
		if err != nil {
			return nil, fmt.Errorf("reference image: %w", err)
		}
	}

	var progress ProgressCallback = NewLogProgress(nil, slog.LevelDebug, 10)
	if cfg.ShowProgress && !cfg.Quiet {
		progress = MultiProgress{
			NewConsoleProgress(os.Stderr, "Matching: ").WithUpdateInterval(cfg.ProgressInterval),
			progress,
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	slog.Info("Starting batch", "images", len(files), "workers", workers, "strategy", cfg.Strategy, "backend", m.Backend())

	start := time.Now()
	items, err := processImagesParallel(ctx, files, workers, cfg.ContinueOnError, progress,
		func(ctx context.Context, path string) (ItemResult, error) {
			return processSingleImage(ctx, m, ref, path, cfg)
		})
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Items:       items,
		ImagePaths:  files,
		Duration:    duration,
		WorkerCount: min(workers, len(files)),
	}, nil
}
