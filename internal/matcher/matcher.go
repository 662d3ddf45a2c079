// Package matcher locates a pattern ROI inside a search ROI, either by
// rotation-swept normalized cross-correlation or by binary keypoint matching
// with a RANSAC homography.
//
// Matching never fails for expected reasons: a weak peak, too few matches or
// a degenerate homography all come back as a Result with Found == false.
// Only ErrNativeUnavailable and context errors are returned as errors.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/roikit/internal/crop"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
)

// Config configures a Matcher.
type Config struct {
	Backend        string // go, opencv or auto
	Strategy       string // default strategy name
	ScoreThreshold int    // 0..100
	Options        Options
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendGo,
		Strategy:       RotatedStrategyName,
		ScoreThreshold: 60,
		Options:        DefaultOptions(),
	}
}

// Matcher runs local matching. It holds no per-call state and is safe for
// concurrent use.
type Matcher struct {
	cfg     Config
	backend Backend
	envErr  error
}

var fallbackOnce sync.Once

// New creates a Matcher. Backend availability is checked here, once: an
// "opencv" matcher without OpenCV keeps ErrNativeUnavailable and returns it
// from every call, an "auto" matcher falls back to the Go backend.
func New(cfg Config) *Matcher {
	cfg.Options = cfg.Options.withDefaults()
	cfg.ScoreThreshold = min(max(cfg.ScoreThreshold, 0), 100)
	m := &Matcher{cfg: cfg}

	b, err := NewBackend(cfg.Backend)
	switch {
	case err != nil:
		m.envErr = err
		m.backend = goBackend{}
		slog.Warn("Native matching backend unavailable", "backend", cfg.Backend, "error", err)
	case cfg.Backend == BackendAuto && b.Name() != BackendOpenCV:
		fallbackOnce.Do(func() {
			slog.Warn("OpenCV not linked, using pure Go matching backend")
		})
		m.backend = b
	default:
		m.backend = b
	}
	return m
}

// Backend returns the name of the active backend.
func (m *Matcher) Backend() string { return m.backend.Name() }

// Available reports whether local matching can run. When it returns an
// error, callers should disable local matching.
func (m *Matcher) Available() error { return m.envErr }

// Config returns the effective configuration.
func (m *Matcher) Config() Config { return m.cfg }

// Query is one MatchInSearchRoi call in struct form.
type Query struct {
	Pattern        roi.Model
	Search         roi.Model
	Strategy       string
	ScoreThreshold int
	RotRange       float64
	ScaleMin       float64
	ScaleMax       float64
}

// MatchInSearchRoi locates pattern inside search on img. Both ROIs are
// clipped to the image, cropped upright and converted to grayscale; the
// result center is in image coordinates. A score below threshold is
// reported as not found with the score kept.
func (m *Matcher) MatchInSearchRoi(ctx context.Context, img image.Image, pattern, search roi.Model, strategyName string, threshold int, rotRange, scaleMin, scaleMax float64) (Result, error) {
	return m.Match(ctx, img, Query{
		Pattern:        pattern,
		Search:         search,
		Strategy:       strategyName,
		ScoreThreshold: threshold,
		RotRange:       rotRange,
		ScaleMin:       scaleMin,
		ScaleMax:       scaleMax,
	})
}

// Match is MatchInSearchRoi taking a Query.
func (m *Matcher) Match(ctx context.Context, img image.Image, q Query) (Result, error) {
	return m.MatchAcross(ctx, img, img, q)
}

// MatchAcross cuts the pattern ROI from ref and looks for it inside the
// search ROI of img. The center is in img coordinates. Match is the case
// ref == img.
func (m *Matcher) MatchAcross(ctx context.Context, ref, img image.Image, q Query) (Result, error) {
	strategy := ParseStrategy(q.Strategy)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if m.envErr != nil {
		return Result{}, m.envErr
	}
	if img == nil || img.Bounds().Empty() || ref == nil || ref.Bounds().Empty() {
		return notFound(strategy, 0, ReasonInvalidROI), nil
	}

	searchGray, searchRect, searchInfo, err := uprightGray(img, q.Search)
	if err != nil {
		slog.Debug("Search ROI unusable", "roi", q.Search.String(), "error", err)
		return notFound(strategy, 0, ReasonInvalidROI), nil
	}
	patternGray, _, _, err := uprightGray(ref, q.Pattern)
	if err != nil {
		slog.Debug("Pattern ROI unusable", "roi", q.Pattern.String(), "error", err)
		return notFound(strategy, 0, ReasonInvalidROI), nil
	}

	opts := m.cfg.Options
	opts.RotRange = q.RotRange
	opts.ScaleMin, opts.ScaleMax = q.ScaleMin, q.ScaleMax
	opts = opts.withDefaults()

	res, err := m.run(ctx, strategy, searchGray, patternGray, opts)
	if err != nil {
		return Result{}, err
	}
	if res.Found {
		local := *res.Center
		// back from the upright search crop into the image
		up := local.Add(roi.Pt(float64(searchRect.Min.X), float64(searchRect.Min.Y)))
		center := searchInfo.Pivot().Add(up.Sub(searchInfo.Pivot()).Rotate(q.Search.AngleDeg()))
		res.Center = &center
		res.AngleDeg = roi.NormalizeAngle(res.AngleDeg + q.Search.AngleDeg() - q.Pattern.AngleDeg())
	}
	threshold := min(max(q.ScoreThreshold, 0), 100)
	if res.Found && res.Score < threshold {
		res.Found, res.Center, res.Reason = false, nil, ReasonBelowThreshold
	}
	return res, nil
}

// MatchRotated runs rotation-swept correlation directly on two images. The
// center is in search coordinates.
func (m *Matcher) MatchRotated(ctx context.Context, search, pattern image.Image, rotRange, scaleMin, scaleMax float64) (Result, error) {
	if m.envErr != nil {
		return Result{}, m.envErr
	}
	opts := m.cfg.Options
	opts.RotRange, opts.ScaleMin, opts.ScaleMax = rotRange, scaleMin, scaleMax
	return m.run(ctx, StrategyRotated, utils.ToGray(search), utils.ToGray(pattern), opts.withDefaults())
}

// MatchFeatures runs keypoint matching directly on two images. The center is
// in search coordinates.
func (m *Matcher) MatchFeatures(ctx context.Context, search, pattern image.Image) (Result, error) {
	if m.envErr != nil {
		return Result{}, m.envErr
	}
	return m.run(ctx, StrategyFeatures, utils.ToGray(search), utils.ToGray(pattern), m.cfg.Options)
}

// run dispatches to the backend. Panics and non-context errors become
// not-found results.
func (m *Matcher) run(ctx context.Context, strategy Strategy, search, pattern *image.Gray, opts Options) (res Result, err error) {
	start := time.Now()
	backend := m.backend.Name()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Matching backend panicked", "backend", backend, "strategy", strategy.String(), "panic", fmt.Sprint(r))
			backendFailuresTotal.WithLabelValues(backend).Inc()
			res, err = notFound(strategy, 0, ReasonBackendFailure), nil
		}
		recordMatch(strategy, backend, res, err, time.Since(start).Seconds())
	}()

	switch strategy {
	case StrategyRotated:
		res, err = m.backend.MatchRotated(ctx, search, pattern, opts)
	default:
		res, err = m.backend.MatchFeatures(ctx, search, pattern, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("Matching backend failed", "backend", backend, "strategy", strategy.String(), "error", err)
		backendFailuresTotal.WithLabelValues(backend).Inc()
		return notFound(strategy, 0, ReasonBackendFailure), nil
	}
	if err == nil {
		slog.Debug("Local match finished", "backend", backend, "strategy", strategy.String(), "result", res.String(), "duration", time.Since(start))
	}
	return res, err
}

// uprightGray crops m out of img, de-rotated and clipped to the image, as a
// grayscale image.
func uprightGray(img image.Image, m roi.Model) (*image.Gray, image.Rectangle, crop.Info, error) {
	info, err := crop.BuildInfo(m)
	if err != nil {
		return nil, image.Rectangle{}, crop.Info{}, err
	}
	info, err = crop.ClipToImage(info, img.Bounds())
	if err != nil {
		return nil, image.Rectangle{}, crop.Info{}, err
	}
	pix, rect, err := crop.Rotated(img, info, m.AngleDeg())
	if err != nil {
		return nil, image.Rectangle{}, crop.Info{}, err
	}
	return utils.ToGray(pix), rect, info, nil
}
