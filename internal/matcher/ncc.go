package matcher

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/roikit/internal/mempool"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/disintegration/imaging"
)

const (
	// pyramidCost is the multiply-add count above which correlation runs
	// coarse-to-fine.
	pyramidCost = 1 << 26
	// refineRadius is the full-resolution search radius around a coarse peak.
	refineRadius = 3
	// minPyramidSide keeps coarse templates large enough to carry structure.
	minPyramidSide = 24
)

// template is a zero-mean correlation kernel.
type template struct {
	plane
	energy float64 // sum of squared deviations
}

func newTemplate(g *image.Gray) template {
	p := newPlane(g)
	defer p.release()
	var mean float64
	for _, v := range p.px {
		mean += v
	}
	mean /= float64(len(p.px))
	t := template{plane: plane{w: p.w, h: p.h, px: mempool.GetFloat64(len(p.px))}}
	for i, v := range p.px {
		d := v - mean
		t.px[i] = d
		t.energy += d * d
	}
	return t
}

func (t template) flat() bool { return t.energy < 1e-6*float64(len(t.px)) }

type peak struct {
	loc   image.Point
	value float64
}

// correlate evaluates TM_CCOEFF_NORMED for every top-left position in region
// and returns the highest peak. Windows without variance score 0. Ties keep
// the first position in raster order.
func correlate(ctx context.Context, s plane, ii integral, t template, region image.Rectangle) (peak, error) {
	best := peak{value: math.Inf(-1)}
	n := float64(t.w * t.h)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		for x := region.Min.X; x < region.Max.X; x++ {
			sum, sum2 := ii.sum(x, y, t.w, t.h)
			variance := sum2 - sum*sum/n
			v := 0.0
			if variance > 1e-6*n {
				var num float64
				for j := range t.h {
					srow := s.px[(y+j)*s.w+x : (y+j)*s.w+x+t.w]
					trow := t.px[j*t.w : (j+1)*t.w]
					for i, tv := range trow {
						num += tv * srow[i]
					}
				}
				v = num / math.Sqrt(t.energy*variance)
			}
			if v > best.value {
				best = peak{loc: image.Pt(x, y), value: v}
			}
		}
	}
	return best, nil
}

// matchTemplate finds the best placement of tmpl inside search. It reports
// ok=false when tmpl does not fit or has no texture.
func matchTemplate(ctx context.Context, search, tmpl *image.Gray) (peak, bool, error) {
	sb, tb := search.Bounds(), tmpl.Bounds()
	if tb.Dx() > sb.Dx() || tb.Dy() > sb.Dy() || tb.Empty() {
		return peak{}, false, nil
	}
	t := newTemplate(tmpl)
	defer t.release()
	if t.flat() {
		return peak{}, false, nil
	}
	s := newPlane(search)
	defer s.release()
	ii := newIntegral(s)
	defer ii.release()
	full := image.Rect(0, 0, s.w-t.w+1, s.h-t.h+1)

	cost := full.Dx() * full.Dy() * t.w * t.h
	if cost <= pyramidCost || t.w < 2*minPyramidSide || t.h < 2*minPyramidSide {
		p, err := correlate(ctx, s, ii, t, full)
		return p, err == nil, err
	}

	// coarse level at half resolution, then refine around the coarse peak
	half := func(g *image.Gray) *image.Gray {
		b := g.Bounds()
		return utils.ToGray(imaging.Resize(g, b.Dx()/2, b.Dy()/2, imaging.Box))
	}
	coarse, ok, err := matchTemplate(ctx, half(search), half(tmpl))
	if err != nil || !ok {
		return coarse, ok, err
	}
	c := coarse.loc.Mul(2)
	region := image.Rect(c.X-refineRadius, c.Y-refineRadius, c.X+refineRadius+2, c.Y+refineRadius+2).Intersect(full)
	p, err := correlate(ctx, s, ii, t, region)
	return p, err == nil, err
}

// rotateKeepSize rotates g clockwise by deg about its center and crops the
// result back to the original size. Uncovered corners are black.
func rotateKeepSize(g *image.Gray, deg float64) *image.Gray {
	if deg == 0 {
		return g
	}
	b := g.Bounds()
	rotated := imaging.Rotate(g, -deg, color.Black)
	return utils.ToGray(imaging.CropCenter(rotated, b.Dx(), b.Dy()))
}

// scaleGray resizes g by f. It returns nil when the result would be smaller
// than 2x2.
func scaleGray(g *image.Gray, f float64) *image.Gray {
	if f == 1 {
		return g
	}
	b := g.Bounds()
	w, h := int(math.Round(float64(b.Dx())*f)), int(math.Round(float64(b.Dy())*f))
	if w < 2 || h < 2 {
		return nil
	}
	return utils.ToGray(imaging.Resize(g, w, h, imaging.Linear))
}

// sweepRotated runs correlate over every scale and angle of the sweep and
// keeps the single best peak. The returned center is in search coordinates.
func sweepRotated(ctx context.Context, search, pattern *image.Gray, opts Options, match func(context.Context, *image.Gray, *image.Gray) (peak, bool, error)) (Result, error) {
	var (
		best     Result
		bestVal  = math.Inf(-1)
		anyFit   bool
		anyTexel bool
	)
	sb := search.Bounds()
	for _, scale := range opts.scales() {
		scaled := scaleGray(pattern, scale)
		if scaled == nil {
			continue
		}
		for _, angle := range opts.angles() {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			cand := rotateKeepSize(scaled, angle)
			cb := cand.Bounds()
			if cb.Dx() > sb.Dx() || cb.Dy() > sb.Dy() {
				continue
			}
			anyFit = true
			p, ok, err := match(ctx, search, cand)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				continue
			}
			anyTexel = true
			if p.value > bestVal {
				bestVal = p.value
				center := roi.Pt(float64(p.loc.X)+float64(cb.Dx())/2, float64(p.loc.Y)+float64(cb.Dy())/2)
				best = Result{
					Found:    true,
					Center:   &center,
					Score:    scoreFromNCC(p.value),
					AngleDeg: angle,
					Scale:    scale,
					Strategy: StrategyRotated.String(),
				}
			}
		}
	}
	switch {
	case !anyFit:
		return notFound(StrategyRotated, 0, ReasonPatternTooLarge), nil
	case !anyTexel:
		return notFound(StrategyRotated, 0, ReasonFlatImage), nil
	}
	return best, nil
}
