package matcher

import (
	"errors"
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"gonum.org/v1/gonum/mat"
)

// homography is a row-major 3x3 projective transform with h[8] == 1.
type homography [9]float64

// homographyFrom4 computes H mapping p[i] -> q[i] exactly from four pairs.
func homographyFrom4(p, q [4]roi.Point) (homography, bool) {
	// 8x8 system A*h = b for h00..h21 with h22 = 1
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}
	h, ok := solve8x8(a, b)
	if !ok {
		return homography{}, false
	}
	return homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}

// apply maps p through h. ok is false when p lands on the line at infinity.
func (h homography) apply(p roi.Point) (roi.Point, bool) {
	den := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(den) < 1e-12 {
		return roi.Point{}, false
	}
	q := roi.Pt((h[0]*p.X+h[1]*p.Y+h[2])/den, (h[3]*p.X+h[4]*p.Y+h[5])/den)
	return q, q.Finite()
}

func (h homography) mul(o homography) homography {
	var out homography
	for r := range 3 {
		for c := range 3 {
			for k := range 3 {
				out[r*3+c] += h[r*3+k] * o[k*3+c]
			}
		}
	}
	return out
}

func (h homography) normalized() (homography, bool) {
	if math.Abs(h[8]) < 1e-12 {
		return h, false
	}
	for i := range h {
		h[i] /= h[8]
	}
	return h, true
}

// conditioner returns the similarity that moves the centroid of pts to the
// origin and scales their mean distance to sqrt(2), and its inverse.
func conditioner(pts []roi.Point) (homography, homography) {
	var c roi.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(pts)))
	var d float64
	for _, p := range pts {
		d += p.Dist(c)
	}
	d /= float64(len(pts))
	s := 1.0
	if d > 1e-12 {
		s = math.Sqrt2 / d
	}
	t := homography{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}
	inv := homography{1 / s, 0, c.X, 0, 1 / s, c.Y, 0, 0, 1}
	return t, inv
}

var errSingular = errors.New("homography fit is singular")

// fitHomography solves the least-squares homography over all pairs with a
// QR factorisation on conditioned coordinates.
func fitHomography(src, dst []roi.Point) (homography, error) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return homography{}, errSingular
	}
	ts, _ := conditioner(src)
	td, tdInv := conditioner(dst)

	A := mat.NewDense(2*n, 8, nil)
	B := mat.NewVecDense(2*n, nil)
	for i := range n {
		p, _ := ts.apply(src[i])
		q, _ := td.apply(dst[i])
		X, Y, x, y := p.X, p.Y, q.X, q.Y
		A.SetRow(2*i, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		B.SetVec(2*i, x)
		A.SetRow(2*i+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		B.SetVec(2*i+1, y)
	}

	var qr mat.QR
	qr.Factorize(A)
	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return homography{}, err
	}
	var hn homography
	for i := range 8 {
		hn[i] = params.AtVec(i)
	}
	hn[8] = 1

	h, ok := tdInv.mul(hn).mul(ts).normalized()
	if !ok {
		return homography{}, errSingular
	}
	return h, nil
}

// projectRect maps the corners of a w x h rectangle at the origin through h,
// in order top-left, top-right, bottom-right, bottom-left.
func (h homography) projectRect(w, ht float64) ([4]roi.Point, bool) {
	src := [4]roi.Point{roi.Pt(0, 0), roi.Pt(w, 0), roi.Pt(w, ht), roi.Pt(0, ht)}
	var out [4]roi.Point
	for i, p := range src {
		q, ok := h.apply(p)
		if !ok {
			return out, false
		}
		out[i] = q
	}
	return out, true
}

// plausibleQuad rejects projected pattern outlines that are mirrored, folded,
// or collapsed, which is how degenerate homographies show up.
func plausibleQuad(q [4]roi.Point, w, h float64) bool {
	var area float64
	for i := range 4 {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if cross <= 0 {
			return false
		}
		area += a.X*b.Y - b.X*a.Y
	}
	area /= 2
	ref := w * h
	return area > 0.05*ref && area < 20*ref
}

func centroid(q [4]roi.Point) roi.Point {
	var c roi.Point
	for _, p := range q {
		c = c.Add(p)
	}
	return c.Scale(0.25)
}
