// Package canvas maps between image space (bitmap pixels, origin top-left)
// and canvas space (the on-screen surface that letterboxes the image).
package canvas

import (
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

// Size is a width/height pair in either space.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether both sides are finite and positive.
func (s Size) Valid() bool {
	return finite(s.W) && finite(s.H) && s.W > 0 && s.H > 0
}

// Rect is an axis-aligned rectangle in viewport coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Origin returns the top-left corner.
func (r Rect) Origin() roi.Point { return roi.Pt(r.X, r.Y) }

// DisplayRect returns the centered rectangle inside viewport where an image of
// the given size is painted with its aspect ratio preserved. Degenerate sizes
// yield the zero rectangle.
func DisplayRect(image, viewport Size) Rect {
	if !image.Valid() || !viewport.Valid() {
		return Rect{}
	}
	scale := math.Min(viewport.W/image.W, viewport.H/image.H)
	w, h := image.W*scale, image.H*scale
	return Rect{X: (viewport.W - w) / 2, Y: (viewport.H - h) / 2, W: w, H: h}
}

// Transform is a uniform scale followed by an offset, image -> canvas.
type Transform struct {
	Offset roi.Point `json:"offset"`
	Scale  float64   `json:"scale"`
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform { return Transform{Scale: 1} }

// NewTransform builds the image -> canvas transform for an image letterboxed
// into viewport. Degenerate sizes yield Identity.
func NewTransform(image, viewport Size) Transform {
	r := DisplayRect(image, viewport)
	if r.W <= 0 {
		return Identity()
	}
	return Transform{Offset: r.Origin(), Scale: r.W / image.W}
}

func (t Transform) scale() float64 {
	if !finite(t.Scale) || t.Scale <= 0 {
		return 1
	}
	return t.Scale
}

// ImageToCanvas maps an image-space point to canvas space.
func (t Transform) ImageToCanvas(p roi.Point) roi.Point {
	return t.Offset.Add(p.Scale(t.scale()))
}

// CanvasToImage maps a canvas-space point to image space.
func (t Transform) CanvasToImage(p roi.Point) roi.Point {
	return p.Sub(t.Offset).Scale(1 / t.scale())
}

// LengthToCanvas scales an image-space length or delta.
func (t Transform) LengthToCanvas(v float64) float64 { return v * t.scale() }

// LengthToImage scales a canvas-space length or delta.
func (t Transform) LengthToImage(v float64) float64 { return v / t.scale() }

// DeltaToImage scales a canvas-space displacement. Offsets do not apply.
func (t Transform) DeltaToImage(d roi.Point) roi.Point { return d.Scale(1 / t.scale()) }

// ROIToCanvas maps a whole ROI into canvas space. The angle is unchanged.
func (t Transform) ROIToCanvas(m roi.Model) roi.Model {
	return m.Mapped(t.Offset, t.scale())
}

// ROIToImage maps a canvas-space ROI back into image space.
func (t Transform) ROIToImage(m roi.Model) roi.Model {
	s := t.scale()
	return m.Mapped(t.Offset.Scale(-1/s), 1/s)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
