package editor

import (
	"math"

	"github.com/MeKo-Tech/roikit/internal/canvas"
	"github.com/MeKo-Tech/roikit/internal/roi"
)

// HandlePositions returns the canvas position of every handle of m. The
// rotate handle sits offset canvas pixels above the top edge; the
// inner-radius handle sits on the inner ring, to the right of the center in
// the ROI frame, and only exists for annuli.
func HandlePositions(m roi.Model, xf canvas.Transform, offset float64) map[Handle]roi.Point {
	c := xf.ROIToCanvas(m)
	hw, hh := c.Width()/2, c.Height()/2

	out := make(map[Handle]roi.Point, 11)
	out[HandleMove] = c.Center()
	for _, h := range resizeHandles {
		ax, ay, _ := h.direction()
		out[h] = c.ToWorld(roi.Pt(ax*hw, ay*hh))
	}
	out[HandleRotate] = c.ToWorld(roi.Pt(0, -hh-offset))
	if m.Shape == roi.ShapeAnnulus {
		out[HandleInnerRadius] = c.ToWorld(roi.Pt(c.InnerRadius(), 0))
	}
	return out
}

// HandlePositions returns the handle layout of the attached ROI.
func (e *Editor) HandlePositions() map[Handle]roi.Point {
	if e.target == nil {
		return nil
	}
	return HandlePositions(*e.target, e.xf, e.cfg.RotateHandleOffset)
}

// HitTest returns the enabled handle under the canvas point p. Rotate and
// inner-radius handles win over corners, corners over edges, and a point
// inside the shape falls back to HandleMove.
func (e *Editor) HitTest(p roi.Point) Handle {
	if e.target == nil || !p.Finite() {
		return HandleNone
	}
	pos := e.HandlePositions()
	order := append([]Handle{HandleRotate, HandleInnerRadius}, resizeHandles...)

	best, bestDist := HandleNone, math.Inf(1)
	for _, h := range order {
		hp, ok := pos[h]
		if !ok || !e.HandleEnabled(h) {
			continue
		}
		if d := hp.Dist(p); d <= e.cfg.HitTolerance && d < bestDist {
			best, bestDist = h, d
		}
	}
	if best != HandleNone {
		return best
	}
	if e.HandleEnabled(HandleMove) && e.target.Contains(e.xf.CanvasToImage(p)) {
		return HandleMove
	}
	return HandleNone
}

// NewFromDrag creates a ROI from a drawing gesture between two canvas points.
// The gesture box is converted to image space immediately; round shapes are
// centered in the box with r = max(w, h)/2. Sides below cfg.MinSize are
// raised to it.
func NewFromDrag(shape roi.Shape, role roi.Role, from, to roi.Point, xf canvas.Transform, cfg Config) (roi.Model, error) {
	if !from.Finite() || !to.Finite() {
		return roi.Model{}, ErrInvalidPointer
	}
	cfg = cfg.withDefaults()

	a, b := xf.CanvasToImage(from), xf.CanvasToImage(to)
	x, y := math.Min(a.X, b.X), math.Min(a.Y, b.Y)
	w := math.Max(math.Abs(b.X-a.X), cfg.MinSize)
	h := math.Max(math.Abs(b.Y-a.Y), cfg.MinSize)

	switch shape {
	case roi.ShapeCircle:
		return roi.NewCircle(role, x+w/2, y+h/2, math.Max(w, h)/2, 0), nil
	case roi.ShapeAnnulus:
		return roi.NewAnnulus(role, x+w/2, y+h/2, math.Max(w, h)/2, 0, 0, cfg.Radii), nil
	default:
		return roi.NewRect(role, x, y, w, h, 0), nil
	}
}
