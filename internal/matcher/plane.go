package matcher

import (
	"image"

	"github.com/MeKo-Tech/roikit/internal/mempool"
)

// plane is a float64 grayscale buffer with origin (0, 0).
type plane struct {
	w, h int
	px   []float64
}

func newPlane(g *image.Gray) plane {
	b := g.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), px: mempool.GetFloat64(b.Dx() * b.Dy())}
	for y := range p.h {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x, v := range g.Pix[off : off+p.w] {
			p.px[y*p.w+x] = float64(v)
		}
	}
	return p
}

func (p plane) at(x, y int) float64 { return p.px[y*p.w+x] }

// release hands the pixel buffer back to the pool. p must not be used after.
func (p plane) release() { mempool.PutFloat64(p.px) }

// integral holds summed-area tables of a plane and its squares, sized
// (w+1)*(h+1) so window sums need no bounds checks.
type integral struct {
	w, h  int
	s, s2 []float64
}

func newIntegral(p plane) integral {
	stride := p.w + 1
	ii := integral{w: p.w, h: p.h, s: mempool.GetFloat64(stride * (p.h + 1)), s2: mempool.GetFloat64(stride * (p.h + 1))}
	for y := range p.h {
		var rs, rs2 float64
		for x := range p.w {
			v := p.px[y*p.w+x]
			rs += v
			rs2 += v * v
			i := (y+1)*stride + x + 1
			ii.s[i] = ii.s[i-stride] + rs
			ii.s2[i] = ii.s2[i-stride] + rs2
		}
	}
	return ii
}

func (ii integral) release() {
	mempool.PutFloat64(ii.s)
	mempool.PutFloat64(ii.s2)
}

// sum returns the sum and sum of squares over the window [x, x+w) x [y, y+h).
func (ii integral) sum(x, y, w, h int) (float64, float64) {
	stride := ii.w + 1
	a := y*stride + x
	b := a + w
	c := (y+h)*stride + x
	d := c + w
	return ii.s[d] - ii.s[b] - ii.s[c] + ii.s[a], ii.s2[d] - ii.s2[b] - ii.s2[c] + ii.s2[a]
}

// boxBlur smooths p with a (2r+1)^2 box, shrinking the window at the edges.
func boxBlur(p plane, r int) plane {
	ii := newIntegral(p)
	defer ii.release()
	out := plane{w: p.w, h: p.h, px: mempool.GetFloat64(len(p.px))}
	for y := range p.h {
		y0, y1 := max(0, y-r), min(p.h, y+r+1)
		for x := range p.w {
			x0, x1 := max(0, x-r), min(p.w, x+r+1)
			s, _ := ii.sum(x0, y0, x1-x0, y1-y0)
			out.px[y*p.w+x] = s / float64((x1-x0)*(y1-y0))
		}
	}
	return out
}
