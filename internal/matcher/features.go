package matcher

import (
	"cmp"
	"math"
	"math/bits"
	"math/rand/v2"
	"slices"
)

const (
	fastArc       = 9  // contiguous circle pixels required for a corner
	featureBorder = 16 // keeps orientation and descriptor patches inside the image
	orientRadius  = 15
	briefRadius   = 13
	briefPairs    = 256
	briefBlur     = 2 // 5x5 box
	briefSeedHigh = 0x726f696b6974
	briefSeedLow  = 0x6272696566
)

// circle16 is the Bresenham circle of radius 3 used by FAST.
var circle16 = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type keypoint struct {
	x, y  int
	score float64
	angle float64 // radians
}

type descriptor [briefPairs / 64]uint64

func hamming(a, b descriptor) int {
	n := 0
	for i := range a {
		n += bits.OnesCount64(a[i] ^ b[i])
	}
	return n
}

// detectFAST finds FAST-9 corners, suppresses non-maxima in a 3x3
// neighbourhood and returns at most maxN of the strongest.
func detectFAST(p plane, threshold float64, maxN int) []keypoint {
	if p.w <= 2*featureBorder || p.h <= 2*featureBorder {
		return nil
	}
	scores := make([]float64, len(p.px))
	for y := featureBorder; y < p.h-featureBorder; y++ {
		for x := featureBorder; x < p.w-featureBorder; x++ {
			scores[y*p.w+x] = fastScore(p, x, y, threshold)
		}
	}

	var kps []keypoint
	for y := featureBorder; y < p.h-featureBorder; y++ {
		for x := featureBorder; x < p.w-featureBorder; x++ {
			i := y*p.w + x
			sc := scores[i]
			if sc <= 0 || !localMax(scores, p.w, x, y) {
				continue
			}
			kps = append(kps, keypoint{x: x, y: y, score: sc})
		}
	}
	slices.SortStableFunc(kps, func(a, b keypoint) int { return cmp.Compare(b.score, a.score) })
	if len(kps) > maxN {
		kps = kps[:maxN]
	}
	return kps
}

// fastScore returns the corner strength at (x, y), or 0 when fewer than
// fastArc contiguous circle pixels are all brighter or all darker than the
// center by more than threshold.
func fastScore(p plane, x, y int, threshold float64) float64 {
	c := p.at(x, y)
	var class [16]int8
	var sad float64
	for i, o := range circle16 {
		v := p.at(x+o[0], y+o[1])
		switch {
		case v > c+threshold:
			class[i] = 1
		case v < c-threshold:
			class[i] = -1
		}
		if d := math.Abs(v-c) - threshold; d > 0 {
			sad += d
		}
	}
	for _, want := range [2]int8{1, -1} {
		run := 0
		for i := range 16 + fastArc - 1 {
			if class[i%16] == want {
				run++
				if run >= fastArc {
					return sad
				}
			} else {
				run = 0
			}
		}
	}
	return 0
}

// localMax reports whether (x, y) survives 3x3 suppression. Equal scores are
// resolved in favour of the earlier pixel in raster order.
func localMax(scores []float64, w, x, y int) bool {
	sc := scores[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			if n > sc || (n == sc && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

// orient sets each keypoint's angle from the intensity centroid of a disc
// of radius orientRadius.
func orient(p plane, kps []keypoint) {
	var span [orientRadius + 1]int
	for dy := range span {
		span[dy] = int(math.Floor(math.Sqrt(float64(orientRadius*orientRadius - dy*dy))))
	}
	for k := range kps {
		var m10, m01 float64
		for dy := -orientRadius; dy <= orientRadius; dy++ {
			r := span[abs(dy)]
			for dx := -r; dx <= r; dx++ {
				v := p.at(kps[k].x+dx, kps[k].y+dy)
				m10 += float64(dx) * v
				m01 += float64(dy) * v
			}
		}
		kps[k].angle = math.Atan2(m01, m10)
	}
}

type samplePair struct{ ax, ay, bx, by float64 }

// briefPattern is the fixed test pattern shared by every descriptor. Points
// are drawn uniformly from a disc so rotation keeps them inside the border.
var briefPattern = func() [briefPairs]samplePair {
	rng := rand.New(rand.NewPCG(briefSeedHigh, briefSeedLow))
	point := func() (float64, float64) {
		for {
			x := float64(rng.IntN(2*briefRadius+1) - briefRadius)
			y := float64(rng.IntN(2*briefRadius+1) - briefRadius)
			if x*x+y*y <= briefRadius*briefRadius {
				return x, y
			}
		}
	}
	var out [briefPairs]samplePair
	for i := range out {
		for {
			ax, ay := point()
			bx, by := point()
			if ax != bx || ay != by {
				out[i] = samplePair{ax, ay, bx, by}
				break
			}
		}
	}
	return out
}()

// describe computes steered BRIEF descriptors on a smoothed plane.
func describe(smooth plane, kps []keypoint) []descriptor {
	out := make([]descriptor, len(kps))
	for k, kp := range kps {
		s, c := math.Sincos(kp.angle)
		sample := func(x, y float64) float64 {
			rx := int(math.Round(c*x - s*y))
			ry := int(math.Round(s*x + c*y))
			return smooth.at(kp.x+rx, kp.y+ry)
		}
		var d descriptor
		for i, pr := range briefPattern {
			if sample(pr.ax, pr.ay) < sample(pr.bx, pr.by) {
				d[i/64] |= 1 << (uint(i) % 64)
			}
		}
		out[k] = d
	}
	return out
}

type featureMatch struct {
	query, train int
	distance     int
}

// crossMatch pairs each query descriptor with its nearest train descriptor
// and keeps only mutual nearest neighbours, sorted by distance.
func crossMatch(query, train []descriptor) []featureMatch {
	if len(query) == 0 || len(train) == 0 {
		return nil
	}
	bestTrain := make([]int, len(query))
	bestTrainDist := make([]int, len(query))
	bestQuery := make([]int, len(train))
	bestQueryDist := make([]int, len(train))
	for i := range bestQueryDist {
		bestQueryDist[i] = math.MaxInt
	}
	for qi, q := range query {
		bestTrainDist[qi] = math.MaxInt
		for ti, t := range train {
			d := hamming(q, t)
			if d < bestTrainDist[qi] {
				bestTrainDist[qi], bestTrain[qi] = d, ti
			}
			if d < bestQueryDist[ti] {
				bestQueryDist[ti], bestQuery[ti] = d, qi
			}
		}
	}
	var out []featureMatch
	for qi, ti := range bestTrain {
		if bestQuery[ti] == qi {
			out = append(out, featureMatch{query: qi, train: ti, distance: bestTrainDist[qi]})
		}
	}
	slices.SortStableFunc(out, func(a, b featureMatch) int { return cmp.Compare(a.distance, b.distance) })
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
