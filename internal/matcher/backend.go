package matcher

import (
	"cmp"
	"context"
	"errors"
	"image"
	"math"
	"slices"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

// ErrNativeUnavailable reports that the OpenCV backend is not linked into
// this binary. Callers should disable native matching rather than retry.
var ErrNativeUnavailable = errors.New("matcher: native OpenCV backend unavailable (build with -tags gocv)")

// Backend runs one strategy on grayscale crops. Results carry centers in
// search-crop coordinates. Returned errors other than context errors are
// treated as backend failures by Matcher.
type Backend interface {
	Name() string
	MatchRotated(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error)
	MatchFeatures(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error)
}

// Backend names accepted by NewBackend.
const (
	BackendGo     = "go"
	BackendOpenCV = "opencv"
	BackendAuto   = "auto"
)

// NewBackend returns the named backend. "auto" prefers OpenCV and falls back
// to the pure Go backend; "opencv" fails with ErrNativeUnavailable when the
// binary was built without it.
func NewBackend(name string) (Backend, error) {
	switch name {
	case BackendOpenCV:
		return newNativeBackend()
	case BackendAuto:
		if b, err := newNativeBackend(); err == nil {
			return b, nil
		}
		return goBackend{}, nil
	default:
		return goBackend{}, nil
	}
}

// goBackend is the dependency-free implementation.
type goBackend struct{}

func (goBackend) Name() string { return BackendGo }

func (goBackend) MatchRotated(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error) {
	return sweepRotated(ctx, search, pattern, opts, matchTemplate)
}

func (goBackend) MatchFeatures(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error) {
	pp, sp := newPlane(pattern), newPlane(search)
	defer pp.release()
	defer sp.release()

	pk := detectFAST(pp, float64(opts.FastThreshold), opts.MaxFeatures)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sk := detectFAST(sp, float64(opts.FastThreshold), opts.MaxFeatures)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	orient(pp, pk)
	orient(sp, sk)
	pb, sb := boxBlur(pp, briefBlur), boxBlur(sp, briefBlur)
	pd, sd := describe(pb, pk), describe(sb, sk)
	pb.release()
	sb.release()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	matches := crossMatch(pd, sd)
	if len(matches) > opts.MaxMatches {
		matches = matches[:opts.MaxMatches]
	}
	pairs := make([]matchPair, len(matches))
	for i, m := range matches {
		pairs[i] = matchPair{
			pattern:  roi.Pt(float64(pk[m.query].x), float64(pk[m.query].y)),
			search:   roi.Pt(float64(sk[m.train].x), float64(sk[m.train].y)),
			distance: float64(m.distance),
		}
	}
	return locateByHomography(pairs, pattern.Bounds(), opts, ransacEstimator(opts)), nil
}

// estimator fits a homography pattern -> search and reports its inlier count.
type estimator func(src, dst []roi.Point) (homography, int, bool)

func ransacEstimator(opts Options) estimator {
	return func(src, dst []roi.Point) (homography, int, bool) {
		h, inl, ok := ransacHomography(src, dst, opts.RansacThreshold, opts.RansacIterations)
		return h, len(inl), ok
	}
}

func sortPairs(pairs []matchPair) {
	slices.SortStableFunc(pairs, func(a, b matchPair) int { return cmp.Compare(a.distance, b.distance) })
}

// matchPair is one accepted descriptor match, in crop coordinates.
type matchPair struct {
	pattern, search roi.Point
	distance        float64
}

// locateByHomography fits a homography to the matches and reports the
// centroid of the projected pattern outline. Shared by both backends.
func locateByHomography(pairs []matchPair, patternBounds image.Rectangle, opts Options, estimate estimator) Result {
	if len(pairs) < opts.MinMatches {
		r := notFound(StrategyFeatures, featureScore(pairs), ReasonFewFeatures)
		r.Matches = len(pairs)
		return r
	}
	src := make([]roi.Point, len(pairs))
	dst := make([]roi.Point, len(pairs))
	for i, p := range pairs {
		src[i], dst[i] = p.pattern, p.search
	}
	score := featureScore(pairs)

	h, inl, ok := estimate(src, dst)
	w, ht := float64(patternBounds.Dx()), float64(patternBounds.Dy())
	var quad [4]roi.Point
	if ok {
		quad, ok = h.projectRect(w, ht)
	}
	if !ok || !plausibleQuad(quad, w, ht) {
		r := notFound(StrategyFeatures, score, ReasonDegenerate)
		r.Matches = len(pairs)
		return r
	}

	center := centroid(quad)
	return Result{
		Found:    true,
		Center:   &center,
		Score:    score,
		AngleDeg: roi.NormalizeAngle(math.Atan2(quad[1].Y-quad[0].Y, quad[1].X-quad[0].X) * 180 / math.Pi),
		Scale:    quad[0].Dist(quad[1]) / math.Max(w, 1),
		Matches:  inl,
		Strategy: StrategyFeatures.String(),
	}
}

// featureScore is clamp(100 - mean descriptor distance, 0, 100).
func featureScore(pairs []matchPair) int {
	if len(pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pairs {
		sum += p.distance
	}
	return int(math.Round(clamp(100-sum/float64(len(pairs)), 0, 100)))
}
