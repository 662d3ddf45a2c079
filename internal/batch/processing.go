package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/roikit/internal/export"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
)

// loadAndValidateImage loads an image and checks it against the default
// size constraints.
func loadAndValidateImage(path string) (image.Image, utils.ImageMetadata, error) {
	if !utils.IsSupportedImage(path) {
		return nil, utils.ImageMetadata{}, fmt.Errorf("unsupported image format: %s", path)
	}

	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("%s: %w", path, err)
	}

	return img, meta, nil
}

// processSingleImage matches the configured ROIs on one image. ref, when not
// nil, is the image the pattern is cut from.
func processSingleImage(ctx context.Context, m *matcher.Matcher, ref image.Image, path string, cfg *Config) (ItemResult, error) {
	start := time.Now()
	img, meta, err := loadAndValidateImage(path)
	if err != nil {
		return ItemResult{File: path}, err
	}

	src := ref
	if src == nil {
		src = img
	}
	res, err := m.MatchAcross(ctx, src, img, cfg.query())
	if err != nil {
		return ItemResult{File: path}, fmt.Errorf("match failed for %s: %w", path, err)
	}

	item := ItemResult{
		File:   path,
		Width:  meta.Width,
		Height: meta.Height,
		Result: &res,
	}
	if cfg.OverlayDir != "" {
		out, err := saveOverlay(img, path, cfg, ref == nil, res)
		if err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		} else {
			item.Overlay = out
		}
	}
	item.Duration = time.Since(start)
	slog.Debug("Matched image", "file", path, "found", res.Found, "score", res.Score, "duration", item.Duration)
	return item, nil
}

// locatedPattern returns the pattern box moved to the match center.
func locatedPattern(pattern roi.Model, res matcher.Result) roi.Model {
	loc := pattern.Clone()
	loc.Role = roi.RoleInspection
	loc.SetCenterSize(*res.Center, pattern.Width(), pattern.Height())
	return loc
}

func saveOverlay(img image.Image, path string, cfg *Config, withPattern bool, res matcher.Result) (string, error) {
	rois := []roi.Model{cfg.Search}
	if withPattern {
		rois = append(rois, cfg.Pattern)
	}
	var marks []roi.Point
	if res.Found {
		rois = append(rois, locatedPattern(cfg.Pattern, res))
		marks = append(marks, *res.Center)
	}
	ov := export.RenderOverlay(img, rois, marks)

	base := filepath.Base(path)
	out := filepath.Join(cfg.OverlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	if err := utils.SaveImage(out, ov); err != nil {
		return "", err
	}
	return out, nil
}

type processFunc func(ctx context.Context, path string) (ItemResult, error)

type imageJob struct {
	index int
	path  string
}

type imageResult struct {
	index int
	item  ItemResult
	err   error
}

// processImagesParallel runs fn over paths with a bounded worker pool and
// returns the items in input order. Failed items carry their error text.
// Without continueOnError the first failure cancels the remaining work and
// is returned.
func processImagesParallel(ctx context.Context, paths []string, workers int, continueOnError bool,
	progress ProgressCallback, fn processFunc) ([]ItemResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(paths))
	if progress == nil {
		progress = NoOpProgress{}
	}

	progress.OnStart(len(paths))
	defer progress.OnComplete()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan imageJob)
	results := make(chan imageResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				item, err := fn(runCtx, job.path)
				results <- imageResult{index: job.index, item: item, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- imageJob{index: i, path: p}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]ItemResult, len(paths))
	for i, p := range paths {
		items[i].File = p
	}
	var firstErr error
	done := 0
	for r := range results {
		items[r.index] = r.item
		items[r.index].File = paths[r.index]
		if r.err != nil {
			items[r.index].Error = r.err.Error()
			items[r.index].Result = nil
			progress.OnError(paths[r.index], r.err)
			if !continueOnError && firstErr == nil {
				firstErr = r.err
				cancel()
			}
		}
		done++
		progress.OnProgress(done, len(paths))
	}

	if err := ctx.Err(); err != nil {
		return items, err
	}
	if firstErr != nil {
		return items, firstErr
	}
	return items, nil
}
