package matcher

import (
	"math"
	"math/rand/v2"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

// ransacSeed fixes the sampling sequence so results are reproducible.
const ransacSeed = 0x68_6f_6d_6f

// ransacHomography estimates H mapping src -> dst robustly. It returns the
// model refit on its inliers and the inlier indices.
func ransacHomography(src, dst []roi.Point, threshold float64, iterations int) (homography, []int, bool) {
	n := len(src)
	if n < 4 {
		return homography{}, nil, false
	}
	rng := rand.New(rand.NewPCG(ransacSeed, uint64(n)))

	var (
		best        homography
		bestInliers []int
	)
	for range iterations {
		idx := sample4(rng, n)
		var p, q [4]roi.Point
		for i, j := range idx {
			p[i], q[i] = src[j], dst[j]
		}
		if collinearAny(p) || collinearAny(q) {
			continue
		}
		h, ok := homographyFrom4(p, q)
		if !ok {
			continue
		}
		inl := inliers(h, src, dst, threshold)
		if len(inl) > len(bestInliers) {
			best, bestInliers = h, inl
			if len(inl) == n {
				break
			}
		}
	}
	if len(bestInliers) < 4 {
		return homography{}, nil, false
	}

	// refit on the consensus set and keep it only if it does not lose support
	sIn := make([]roi.Point, len(bestInliers))
	dIn := make([]roi.Point, len(bestInliers))
	for i, j := range bestInliers {
		sIn[i], dIn[i] = src[j], dst[j]
	}
	if refit, err := fitHomography(sIn, dIn); err == nil {
		if inl := inliers(refit, src, dst, threshold); len(inl) >= len(bestInliers) {
			return refit, inl, true
		}
	}
	return best, bestInliers, true
}

func sample4(rng *rand.Rand, n int) [4]int {
	var idx [4]int
	for i := 0; i < 4; {
		v := rng.IntN(n)
		dup := false
		for _, u := range idx[:i] {
			if u == v {
				dup = true
				break
			}
		}
		if !dup {
			idx[i] = v
			i++
		}
	}
	return idx
}

func inliers(h homography, src, dst []roi.Point, threshold float64) []int {
	var out []int
	for i := range src {
		q, ok := h.apply(src[i])
		if ok && q.Dist(dst[i]) <= threshold {
			out = append(out, i)
		}
	}
	return out
}

// collinearAny reports whether any three of the points are (nearly) collinear.
func collinearAny(p [4]roi.Point) bool {
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				a, b, c := p[i], p[j], p[k]
				area := math.Abs((b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X))
				if area < 1 {
					return true
				}
			}
		}
	}
	return false
}
