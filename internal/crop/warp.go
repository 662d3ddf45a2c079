package crop

import (
	"image"
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotated extracts the crop described by info from img after de-rotating the
// image by angleDeg about the pivot. ROI angles are clockwise-positive, so the
// source is turned counter-clockwise to bring the ROI upright. Pixels that
// map outside the source stay zero. The returned image has its origin at
// (0, 0); rect is its position in img.
//
// Gray sources produce *image.Gray crops, everything else *image.RGBA.
func Rotated(img image.Image, info Info, angleDeg float64) (image.Image, image.Rectangle, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, image.Rectangle{}, ErrEmptyImage
	}
	r, err := Rect(info, img.Bounds())
	if err != nil {
		return nil, image.Rectangle{}, err
	}

	dst := newLike(img, r.Dx(), r.Dy())
	angle := roi.NormalizeAngle(angleDeg)
	if angle == 0 {
		draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
		return dst, r, nil
	}

	draw.BiLinear.Transform(dst, derotation(info.Pivot(), angle, r.Min), img, img.Bounds(), draw.Src, nil)
	return dst, r, nil
}

// derotation returns the source -> crop transform: rotation by -angle about
// pivot followed by a shift of origin to the crop corner.
func derotation(pivot roi.Point, angleDeg float64, origin image.Point) f64.Aff3 {
	s, c := math.Sincos(angleDeg * math.Pi / 180)
	px, py := pivot.X, pivot.Y
	return f64.Aff3{
		c, s, px - (c*px + s*py) - float64(origin.X),
		-s, c, py - (-s*px + c*py) - float64(origin.Y),
	}
}

func newLike(img image.Image, w, h int) draw.Image {
	r := image.Rect(0, 0, w, h)
	if _, ok := img.(*image.Gray); ok {
		return image.NewGray(r)
	}
	return image.NewRGBA(r)
}
