// Package crop turns a ROI and a source image into the smallest axis-aligned
// crop that holds the de-rotated ROI, plus a mask for round shapes.
package crop

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

var (
	ErrEmptyImage      = errors.New("crop: source image is empty")
	ErrEmptyCrop       = errors.New("crop: crop rectangle is empty")
	ErrInvalidGeometry = errors.New("crop: roi geometry is not usable")
)

// Info is the per-operation projection of a ROI consumed by Rotated and
// BuildMask. Coordinates are image pixels; the pivot is the ROI center.
type Info struct {
	Shape       roi.Shape `json:"-"`
	Left        float64   `json:"left"`
	Top         float64   `json:"top"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	PivotX      float64   `json:"pivot_x"`
	PivotY      float64   `json:"pivot_y"`
	Radius      float64   `json:"radius"`
	InnerRadius float64   `json:"inner_radius"`
}

// Pivot returns the rotation pivot.
func (i Info) Pivot() roi.Point { return roi.Pt(i.PivotX, i.PivotY) }

// BuildInfo derives crop parameters from m. It fails only when m has no
// finite, non-empty geometry.
func BuildInfo(m roi.Model) (Info, error) {
	if !m.Valid() {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidGeometry, m)
	}
	info := Info{
		Shape:  m.Shape,
		Left:   m.Left(),
		Top:    m.Top(),
		Width:  m.Width(),
		Height: m.Height(),
		PivotX: m.Center().X,
		PivotY: m.Center().Y,
		Radius: m.Radius(),
	}
	if m.Shape == roi.ShapeAnnulus {
		info.InnerRadius = m.Rules().ClampInner(m.InnerRadius(), m.Radius())
	}
	return info, nil
}

// Rect returns the integer crop rectangle for info inside bounds: floor of
// the top-left through ceil of the bottom-right, intersected with bounds.
func Rect(info Info, bounds image.Rectangle) (image.Rectangle, error) {
	vals := []float64{info.Left, info.Top, info.Width, info.Height}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, ErrInvalidGeometry
		}
	}
	r := image.Rect(
		int(math.Floor(info.Left)),
		int(math.Floor(info.Top)),
		int(math.Ceil(info.Left+info.Width)),
		int(math.Ceil(info.Top+info.Height)),
	).Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	return r, nil
}

// ClipToImage clips the box of info to bounds, keeping the pivot and radii.
// A box that misses bounds entirely is an ErrEmptyCrop.
func ClipToImage(info Info, bounds image.Rectangle) (Info, error) {
	if bounds.Empty() {
		return Info{}, ErrEmptyImage
	}
	r, err := Rect(info, bounds)
	if err != nil {
		return Info{}, err
	}
	left := math.Max(info.Left, float64(r.Min.X))
	top := math.Max(info.Top, float64(r.Min.Y))
	right := math.Min(info.Left+info.Width, float64(r.Max.X))
	bottom := math.Min(info.Top+info.Height, float64(r.Max.Y))
	if right <= left || bottom <= top {
		return Info{}, ErrEmptyCrop
	}
	out := info
	out.Left, out.Top = left, top
	out.Width, out.Height = right-left, bottom-top
	return out, nil
}
