//go:build gocv

package matcher

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"gocv.io/x/gocv"
)

// nativeBackend runs both strategies through OpenCV.
type nativeBackend struct{}

func newNativeBackend() (Backend, error) { return nativeBackend{}, nil }

func (nativeBackend) Name() string { return BackendOpenCV }

func (nativeBackend) MatchRotated(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error) {
	sm, err := gocv.ImageGrayToMatGray(search)
	if err != nil {
		return Result{}, fmt.Errorf("convert search crop: %w", err)
	}
	defer sm.Close()

	match := func(ctx context.Context, _, tmpl *image.Gray) (peak, bool, error) {
		tm, err := gocv.ImageGrayToMatGray(tmpl)
		if err != nil {
			return peak{}, false, fmt.Errorf("convert pattern crop: %w", err)
		}
		defer tm.Close()
		if newTemplate(tmpl).flat() {
			return peak{}, false, nil
		}

		result := gocv.NewMat()
		defer result.Close()
		mask := gocv.NewMat()
		defer mask.Close()
		gocv.MatchTemplate(sm, tm, &result, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
		return peak{loc: maxLoc, value: float64(maxVal)}, true, ctx.Err()
	}
	return sweepRotated(ctx, search, pattern, opts, match)
}

func (nativeBackend) MatchFeatures(ctx context.Context, search, pattern *image.Gray, opts Options) (Result, error) {
	pm, err := gocv.ImageGrayToMatGray(pattern)
	if err != nil {
		return Result{}, fmt.Errorf("convert pattern crop: %w", err)
	}
	defer pm.Close()
	sm, err := gocv.ImageGrayToMatGray(search)
	if err != nil {
		return Result{}, fmt.Errorf("convert search crop: %w", err)
	}
	defer sm.Close()

	orb := gocv.NewORBWithParams(opts.MaxFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, opts.FastThreshold)
	defer orb.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()
	pk, pd := orb.DetectAndCompute(pm, noMask)
	defer pd.Close()
	sk, sd := orb.DetectAndCompute(sm, noMask)
	defer sd.Close()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if pd.Empty() || sd.Empty() {
		return locateByHomography(nil, pattern.Bounds(), opts, nil), nil
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer bf.Close()

	var pairs []matchPair
	for _, knn := range bf.KnnMatch(pd, sd, 1) {
		if len(knn) == 0 {
			continue
		}
		m := knn[0]
		pairs = append(pairs, matchPair{
			pattern:  roi.Pt(pk[m.QueryIdx].X, pk[m.QueryIdx].Y),
			search:   roi.Pt(sk[m.TrainIdx].X, sk[m.TrainIdx].Y),
			distance: m.Distance,
		})
	}
	sortPairs(pairs)
	if len(pairs) > opts.MaxMatches {
		pairs = pairs[:opts.MaxMatches]
	}
	return locateByHomography(pairs, pattern.Bounds(), opts, findHomographyCV(opts)), nil
}

// findHomographyCV estimates the homography with OpenCV's RANSAC.
func findHomographyCV(opts Options) estimator {
	return func(src, dst []roi.Point) (homography, int, bool) {
		sm := pointMat(src)
		defer sm.Close()
		dm := pointMat(dst)
		defer dm.Close()
		mask := gocv.NewMat()
		defer mask.Close()

		hm := gocv.FindHomography(sm, &dm, gocv.HomograpyMethodRANSAC, opts.RansacThreshold, &mask, opts.RansacIterations, 0.995)
		defer hm.Close()
		if hm.Empty() || hm.Rows() != 3 || hm.Cols() != 3 {
			return homography{}, 0, false
		}
		var h homography
		for r := range 3 {
			for c := range 3 {
				h[r*3+c] = hm.GetDoubleAt(r, c)
			}
		}
		h, ok := h.normalized()
		return h, gocv.CountNonZero(mask), ok
	}
}

// pointMat packs points into an Nx2 CV_64F matrix.
func pointMat(pts []roi.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 2, gocv.MatTypeCV64F)
	for i, p := range pts {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}
