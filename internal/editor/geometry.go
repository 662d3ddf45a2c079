package editor

import (
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

func (e *Editor) move(total roi.Point) (roi.Model, bool) {
	d := e.xf.DeltaToImage(total)
	if !d.Finite() {
		return roi.Model{}, false
	}
	next := e.start.Clone()
	next.Translate(d)
	return next, true
}

func (e *Editor) rotate(total roi.Point) (roi.Model, bool) {
	v := e.anchor.Add(total).Sub(e.pivot)
	if v.Len() == 0 || !v.Finite() {
		return roi.Model{}, false
	}
	next := e.start.Clone()
	next.SetAngle(e.start.AngleDeg() + vectorAngle(v) - e.startAngle)
	return next, true
}

func (e *Editor) innerRadius(total roi.Point) (roi.Model, bool) {
	p := e.xf.CanvasToImage(e.anchor.Add(total))
	ri := p.Dist(e.start.Center())
	if math.IsNaN(ri) || math.IsInf(ri, 0) {
		return roi.Model{}, false
	}
	next := e.start.Clone()
	next.SetInnerRadius(ri)
	return next, true
}

// resize moves the dragged edges of the drag-start box by the accumulated
// delta expressed in the ROI's local frame, then re-centers so the opposite
// handle keeps its image position.
func (e *Editor) resize(total roi.Point) (roi.Model, bool) {
	s := e.start
	if total == (roi.Point{}) {
		return s.Clone(), true
	}
	ax, ay, ok := e.handle.direction()
	if !ok {
		return roi.Model{}, false
	}

	d := e.xf.DeltaToImage(total).Rotate(-s.AngleDeg())
	if !d.Finite() {
		return roi.Model{}, false
	}

	w, h := s.Width(), s.Height()
	dw, dh := ax*d.X, ay*d.Y
	if s.Shape.Round() {
		// uniform scaling: the larger of the two candidate deltas wins
		g := dw
		switch {
		case ax == 0:
			g = dh
		case ay != 0 && math.Abs(dh) > math.Abs(dw):
			g = dh
		}
		dw, dh = g, g
	}
	nw := math.Max(w+dw, e.cfg.MinSize)
	nh := math.Max(h+dh, e.cfg.MinSize)

	// anchor in image space from the pre-drag geometry
	anchor := s.ToWorld(roi.Pt(-ax*w/2, -ay*h/2))
	center := anchor.Sub(roi.Pt(-ax*nw/2, -ay*nh/2).Rotate(s.AngleDeg()))
	if !center.Finite() || !anchor.Finite() {
		return roi.Model{}, false
	}

	next := s.Clone()
	next.SetCenterSize(center, nw, nh)
	if s.Shape == roi.ShapeAnnulus && s.Radius() > 0 {
		next.SetInnerRadius(s.InnerRadius() * next.Radius() / s.Radius())
	}
	return next, true
}
