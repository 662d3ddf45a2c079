package crop

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 251)})
		}
	}
	return img
}

func patternRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 5), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestBuildInfo(t *testing.T) {
	m := roi.NewAnnulus(roi.RoleInspection, 80, 80, 60, 30, 15, roi.DefaultRadii())
	info, err := BuildInfo(m)
	require.NoError(t, err)
	assert.Equal(t, Info{
		Shape: roi.ShapeAnnulus, Left: 20, Top: 20, Width: 120, Height: 120,
		PivotX: 80, PivotY: 80, Radius: 60, InnerRadius: 30,
	}, info)

	r := roi.NewRect(roi.RolePattern, 1, 2, 3, 4, 0)
	info, err = BuildInfo(r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, info.InnerRadius)
	assert.Equal(t, roi.Pt(2.5, 4), info.Pivot())

	empty := roi.NewRect(roi.RolePattern, 1, 2, 0, 4, 0)
	_, err = BuildInfo(empty)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	tests := []struct {
		name     string
		info     Info
		expected image.Rectangle
		err      error
	}{
		{"integral", Info{Left: 10, Top: 5, Width: 20, Height: 10}, image.Rect(10, 5, 30, 15), nil},
		{"fractional grows outward", Info{Left: 10.4, Top: 5.6, Width: 20.2, Height: 9.1}, image.Rect(10, 5, 31, 15), nil},
		{"clipped", Info{Left: -10, Top: 40, Width: 30, Height: 30}, image.Rect(0, 40, 20, 50), nil},
		{"sub pixel is one pixel", Info{Left: 3.2, Top: 3.2, Width: 0.1, Height: 0.1}, image.Rect(3, 3, 4, 4), nil},
		{"outside", Info{Left: 200, Top: 0, Width: 10, Height: 10}, image.Rectangle{}, ErrEmptyCrop},
		{"nan", Info{Left: math.NaN(), Width: 10, Height: 10}, image.Rectangle{}, ErrInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Rect(tt.info, bounds)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestClipToImage(t *testing.T) {
	info := Info{Shape: roi.ShapeCircle, Left: -10, Top: -5, Width: 40, Height: 40, PivotX: 10, PivotY: 15, Radius: 20}
	got, err := ClipToImage(info, image.Rect(0, 0, 25, 100))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Left)
	assert.Equal(t, 0.0, got.Top)
	assert.Equal(t, 25.0, got.Width)
	assert.Equal(t, 35.0, got.Height)
	assert.Equal(t, info.Pivot(), got.Pivot())
	assert.Equal(t, 20.0, got.Radius)

	_, err = ClipToImage(info, image.Rect(100, 100, 120, 120))
	assert.ErrorIs(t, err, ErrEmptyCrop)

	_, err = ClipToImage(info, image.Rectangle{})
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestRotated_ZeroAngleMatchesPlainSlice(t *testing.T) {
	src := patternRGBA(64, 48)
	m := roi.NewRect(roi.RolePattern, 7, 9, 21, 13, 0)
	info, err := BuildInfo(m)
	require.NoError(t, err)

	got, rect, err := Rotated(src, info, m.AngleDeg())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(7, 9, 28, 22), rect)
	require.IsType(t, &image.RGBA{}, got)
	assert.Equal(t, image.Rect(0, 0, 21, 13), got.Bounds())

	sub := src.SubImage(rect).(*image.RGBA)
	for y := range rect.Dy() {
		for x := range rect.Dx() {
			assert.Equal(t, sub.RGBAAt(rect.Min.X+x, rect.Min.Y+y), got.(*image.RGBA).RGBAAt(x, y))
		}
	}
}

func TestRotated_GrayStaysGray(t *testing.T) {
	src := patternGray(32, 32)
	got, _, err := Rotated(src, Info{Left: 4, Top: 4, Width: 8, Height: 8, PivotX: 8, PivotY: 8}, 0)
	require.NoError(t, err)
	g, ok := got.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, src.GrayAt(4, 4), g.GrayAt(0, 0))
	assert.Equal(t, src.GrayAt(11, 11), g.GrayAt(7, 7))
}

func TestRotated_QuarterTurn(t *testing.T) {
	src := patternGray(40, 40)
	// 20x10 box centered at (20,20), rotated 90 degrees clockwise: in the
	// source it covers x in [15,25), y in [10,30)
	m := roi.NewRect(roi.RoleInspection, 10, 15, 20, 10, 90)
	info, err := BuildInfo(m)
	require.NoError(t, err)

	got, rect, err := Rotated(src, info, m.AngleDeg())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 15, 30, 25), rect)
	g := got.(*image.Gray)

	for j := range 10 {
		for i := range 20 {
			want := src.GrayAt(24-j, 10+i).Y
			assert.InDelta(t, float64(want), float64(g.GrayAt(i, j).Y), 1, "crop pixel %d,%d", i, j)
		}
	}
}

func TestRotated_OutsideSourceIsZero(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	// a 45 degree box near the corner pulls in pixels from outside
	m := roi.NewRect(roi.RoleInspection, 0, 0, 12, 12, 45)
	info, err := BuildInfo(m)
	require.NoError(t, err)

	got, _, err := Rotated(src, info, m.AngleDeg())
	require.NoError(t, err)
	g := got.(*image.Gray)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(200), g.GrayAt(6, 6).Y)
}

func TestRotated_ClipsPartiallyOutsideROI(t *testing.T) {
	src := patternRGBA(50, 50)
	m := roi.NewRect(roi.RolePattern, 40, -5, 30, 20, 0)
	info, err := BuildInfo(m)
	require.NoError(t, err)

	got, rect, err := Rotated(src, info, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(40, 0, 50, 15), rect)
	assert.Equal(t, 10, got.Bounds().Dx())
	assert.Equal(t, 15, got.Bounds().Dy())
}

func TestRotated_Failures(t *testing.T) {
	info := Info{Left: 0, Top: 0, Width: 10, Height: 10}

	_, _, err := Rotated(nil, info, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = Rotated(image.NewGray(image.Rectangle{}), info, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, _, err = Rotated(patternGray(10, 10), Info{Left: 50, Top: 50, Width: 5, Height: 5}, 30)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}
