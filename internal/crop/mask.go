package crop

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// kappa places cubic Bezier control points for a quarter circle.
const kappa = 0.5522847498

// BuildMask returns a single-channel mask sized to rect. Circles and annuli
// are drawn as anti-aliased discs centered on the pivot, annuli with the
// inner disc carved out. Rectangles get a fully opaque mask.
func BuildMask(info Info, rect image.Rectangle) *image.Gray {
	w, h := rect.Dx(), rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, max(w, 0), max(h, 0)))
	if w <= 0 || h <= 0 {
		return mask
	}
	if !info.Shape.Round() {
		for i := range mask.Pix {
			mask.Pix[i] = 0xff
		}
		return mask
	}

	cx := info.PivotX - float64(rect.Min.X)
	cy := info.PivotY - float64(rect.Min.Y)
	outer := disc(w, h, cx, cy, info.Radius)
	var inner *image.Alpha
	if info.InnerRadius > 0 {
		inner = disc(w, h, cx, cy, info.InnerRadius)
	}
	for i, a := range outer.Pix {
		if inner != nil {
			a = sat(int(a) - int(inner.Pix[i]))
		}
		mask.Pix[i] = a
	}
	return mask
}

// disc rasterizes a filled circle into a coverage buffer.
func disc(w, h int, cx, cy, r float64) *image.Alpha {
	a := image.NewAlpha(image.Rect(0, 0, w, h))
	if !(r > 0) {
		return a
	}
	z := vector.NewRasterizer(w, h)
	x, y, rr := float32(cx), float32(cy), float32(r)
	k := float32(kappa) * rr
	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	z.ClosePath()
	z.DrawOp = draw.Src
	z.Draw(a, a.Bounds(), image.Opaque, image.Point{})
	return a
}

func sat(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}
