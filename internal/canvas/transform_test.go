package canvas

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/stretchr/testify/assert"
)

func TestDisplayRect(t *testing.T) {
	tests := []struct {
		name     string
		image    Size
		viewport Size
		expected Rect
	}{
		{"same aspect", Size{100, 50}, Size{200, 100}, Rect{0, 0, 200, 100}},
		{"pillarbox", Size{100, 100}, Size{300, 200}, Rect{50, 0, 200, 200}},
		{"letterbox", Size{200, 100}, Size{200, 200}, Rect{0, 50, 200, 100}},
		{"shrink", Size{400, 400}, Size{100, 50}, Rect{25, 0, 50, 50}},
		{"zero image", Size{0, 10}, Size{100, 100}, Rect{}},
		{"zero viewport", Size{10, 10}, Size{0, 0}, Rect{}},
		{"nan viewport", Size{10, 10}, Size{math.NaN(), 5}, Rect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayRect(tt.image, tt.viewport))
		})
	}
}

func TestTransform_PointMapping(t *testing.T) {
	xf := NewTransform(Size{100, 100}, Size{300, 200})
	assert.Equal(t, roi.Pt(50, 0), xf.Offset)
	assert.Equal(t, 2.0, xf.Scale)

	assert.Equal(t, roi.Pt(70, 40), xf.ImageToCanvas(roi.Pt(10, 20)))
	assert.Equal(t, roi.Pt(10, 20), xf.CanvasToImage(roi.Pt(70, 40)))
	assert.Equal(t, 8.0, xf.LengthToCanvas(4))
	assert.Equal(t, 2.0, xf.LengthToImage(4))
	assert.Equal(t, roi.Pt(3, -1), xf.DeltaToImage(roi.Pt(6, -2)))
}

func TestTransform_DegenerateIsIdentity(t *testing.T) {
	xf := NewTransform(Size{0, 0}, Size{100, 100})
	assert.Equal(t, Identity(), xf)

	p := roi.Pt(12, 34)
	assert.Equal(t, p, xf.ImageToCanvas(p))
	assert.Equal(t, p, xf.CanvasToImage(p))

	var zero Transform
	assert.Equal(t, p, zero.CanvasToImage(p))
	assert.Equal(t, 5.0, zero.LengthToImage(5))
}

func TestTransform_ROIRoundTrip(t *testing.T) {
	xf := NewTransform(Size{640, 480}, Size{800, 800})
	a := roi.NewAnnulus(roi.RoleInspection, 100, 120, 40, 12, 33, roi.DefaultRadii())

	c := xf.ROIToCanvas(a)
	assert.InDelta(t, a.Radius()*xf.Scale, c.Radius(), 1e-9)
	assert.InDelta(t, a.InnerRadius()*xf.Scale, c.InnerRadius(), 1e-9)
	assert.Equal(t, a.AngleDeg(), c.AngleDeg())
	center := xf.ImageToCanvas(a.Center())
	assert.InDelta(t, center.X, c.Center().X, 1e-9)
	assert.InDelta(t, center.Y, c.Center().Y, 1e-9)

	back := xf.ROIToImage(c)
	assert.InDelta(t, a.Left(), back.Left(), 1e-9)
	assert.InDelta(t, a.Top(), back.Top(), 1e-9)
	assert.InDelta(t, a.Width(), back.Width(), 1e-9)
	assert.InDelta(t, a.InnerRadius(), back.InnerRadius(), 1e-9)
	assert.Equal(t, a.ID, back.ID)
}
