package matcher

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"math"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerScene() *image.Gray {
	return testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), 30, 30, 5)
}

func newGoMatcher() *Matcher {
	cfg := DefaultConfig()
	cfg.Backend = BackendGo
	return New(cfg)
}

func assertCenter(t *testing.T, res Result, x, y, tol float64) {
	t.Helper()
	require.True(t, res.Found, "expected a match, got %s", res)
	require.NotNil(t, res.Center)
	assert.InDelta(t, x, res.Center.X, tol)
	assert.InDelta(t, y, res.Center.Y, tol)
}

func TestMatchInSearchRoi_RotatedFindsMarker(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 60, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 30, 30, 0.5)
	assert.GreaterOrEqual(t, res.Score, 90)
	assert.Equal(t, RotatedStrategyName, res.Strategy)
	assert.InDelta(t, 0, res.AngleDeg, 1e-9)
}

func TestMatchInSearchRoi_SearchClippedToImage(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, -20, -20, 120, 120, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "TM_ROT", 60, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 30, 30, 0.5)
}

func TestMatchInSearchRoi_OffsetSearch(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 5, 8, 50, 45, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 60, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 30, 30, 0.5)
}

func TestMatchInSearchRoi_RotatedSearchMapsBack(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 90)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 60, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 30, 30, 1)
	assert.InDelta(t, 90, res.AngleDeg, 1e-9)
}

func TestMatchAcross_PatternFromReference(t *testing.T) {
	m := newGoMatcher()
	moved := testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), 45, 40, 5)
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)

	res, err := m.MatchAcross(context.Background(), markerScene(), moved, Query{
		Pattern: pattern, Search: search, Strategy: "tm_rot", ScoreThreshold: 60,
	})
	require.NoError(t, err)
	assertCenter(t, res, 45, 40, 0.5)

	res, err = m.MatchAcross(context.Background(), nil, moved, Query{Pattern: pattern, Search: search})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonInvalidROI, res.Reason)
}

func TestMatchInSearchRoi_FeaturesFindTexture(t *testing.T) {
	img := testutil.TexturedImage(200, 200, 8, 42)
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 50, 40, 100, 100, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 200, 200, 0)

	res, err := m.MatchInSearchRoi(context.Background(), img, pattern, search, "orb", 50, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 100, 90, 1.5)
	assert.Equal(t, "orb", res.Strategy)
	assert.GreaterOrEqual(t, res.Matches, 4)
}

func TestMatchInSearchRoi_BelowThreshold(t *testing.T) {
	// pattern from one texture, search over an unrelated one
	img := image.NewGray(image.Rect(0, 0, 200, 100))
	draw.Draw(img, image.Rect(0, 0, 100, 100), testutil.TexturedImage(100, 100, 8, 1), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(100, 0, 200, 100), testutil.TexturedImage(100, 100, 8, 2), image.Point{}, draw.Src)

	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 30, 30, 40, 40, 0)
	search := roi.NewRect(roi.RoleSearch, 100, 0, 100, 100, 0)

	res, err := m.MatchInSearchRoi(context.Background(), img, pattern, search, "tm_rot", 95, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Nil(t, res.Center)
	assert.Less(t, res.Score, 95)
	assert.Equal(t, ReasonBelowThreshold, res.Reason)
}

func TestMatchInSearchRoi_FlatPattern(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 10, 10, 40, 40, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 100, 100, 0)

	res, err := m.MatchInSearchRoi(context.Background(), img, pattern, search, "orb", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonFewFeatures, res.Reason)

	res, err = m.MatchInSearchRoi(context.Background(), img, pattern, search, "tm_rot", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonFlatImage, res.Reason)
}

func TestMatchInSearchRoi_PatternLargerThanSearch(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 10, 10, 50, 50, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 30, 30, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonPatternTooLarge, res.Reason)
}

func TestMatchInSearchRoi_ROIOutsideImage(t *testing.T) {
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 200, 200, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonInvalidROI, res.Reason)

	res, err = m.MatchInSearchRoi(context.Background(), nil, pattern, search, "tm_rot", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMatchInSearchRoi_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newGoMatcher()
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)

	_, err := m.MatchInSearchRoi(ctx, markerScene(), pattern, search, "tm_rot", 0, 0, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

type panicBackend struct{}

func (panicBackend) Name() string { return "panic" }

func (panicBackend) MatchRotated(context.Context, *image.Gray, *image.Gray, Options) (Result, error) {
	panic("boom")
}

func (panicBackend) MatchFeatures(context.Context, *image.Gray, *image.Gray, Options) (Result, error) {
	return Result{}, errors.New("native failure")
}

func TestMatcher_BackendFailuresBecomeNotFound(t *testing.T) {
	m := &Matcher{cfg: DefaultConfig(), backend: panicBackend{}}
	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)

	res, err := m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonBackendFailure, res.Reason)

	res, err = m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "orb", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonBackendFailure, res.Reason)
}

func TestMatcher_DirectEntryPoints(t *testing.T) {
	m := newGoMatcher()
	scene := markerScene()
	pattern := scene.SubImage(image.Rect(20, 20, 40, 40))

	res, err := m.MatchRotated(context.Background(), scene, pattern, 0, 1, 1)
	require.NoError(t, err)
	assertCenter(t, res, 30, 30, 0.5)

	tex := testutil.TexturedImage(200, 200, 8, 9)
	res, err = m.MatchFeatures(context.Background(), tex, tex.SubImage(image.Rect(60, 60, 160, 150)))
	require.NoError(t, err)
	assertCenter(t, res, 110, 105, 1.5)
}

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"tm_rot":   StrategyRotated,
		"TM_ROT":   StrategyRotated,
		" Tm_Rot ": StrategyRotated,
		"orb":      StrategyFeatures,
		"":         StrategyFeatures,
		"sift":     StrategyFeatures,
		"tm":       StrategyFeatures,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseStrategy(name), name)
	}
	assert.Equal(t, "tm_rot", StrategyRotated.String())
	assert.Equal(t, "orb", StrategyFeatures.String())
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{RotRange: 4, RotStep: 2, MinMatches: 2, ScaleMin: 0.9, ScaleMax: 1.1, ScaleStep: 0.1}.withDefaults()
	assert.Equal(t, []float64{0, 2, -2, 4, -4}, o.angles())
	assert.Len(t, o.scales(), 3)
	assert.Equal(t, 4, o.MinMatches)

	d := Options{RotRange: math.NaN(), ScaleMin: -1, ScaleMax: 0.5}.withDefaults()
	assert.Equal(t, []float64{0}, d.angles())
	assert.Equal(t, []float64{1}, d.scales())
	assert.Equal(t, 6, d.MinMatches)
	assert.Equal(t, DefaultOptions().MaxFeatures, d.MaxFeatures)

	assert.InDelta(t, 180, Options{RotRange: 720}.withDefaults().RotRange, 0)
}

func TestResultString(t *testing.T) {
	c := roi.Pt(1.5, 2)
	assert.Contains(t, Result{Found: true, Center: &c, Strategy: "orb", Score: 80}.String(), "found at 1.50,2.00")
	assert.Contains(t, notFound(StrategyRotated, 12, ReasonFlatImage).String(), "not found")
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(BackendGo)
	require.NoError(t, err)
	assert.Equal(t, BackendGo, b.Name())

	b, err = NewBackend(BackendAuto)
	require.NoError(t, err)
	assert.NotNil(t, b)
}
