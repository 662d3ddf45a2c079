package utils

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// CloneRGBA copies img into a new *image.RGBA with bounds starting at (0, 0),
// ready for drawing overlays.
func CloneRGBA(img image.Image) *image.RGBA {
	n := imaging.Clone(img)
	out := image.NewRGBA(n.Bounds())
	for y := range n.Bounds().Dy() {
		for x := range n.Bounds().Dx() {
			out.Set(x, y, n.NRGBAAt(x, y))
		}
	}
	return out
}

// DrawPolygon draws the closed outline through pts.
func DrawPolygon(dst *image.RGBA, pts []image.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		drawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawCircle draws a circle outline of radius r around c.
func DrawCircle(dst *image.RGBA, cx, cy, r float64, col color.Color, thickness int) {
	if !(r > 0) {
		return
	}
	// segment length of about 2px keeps the outline closed
	n := max(16, int(math.Ceil(2*math.Pi*r/2)))
	pts := make([]image.Point, n)
	for i := range n {
		s, c := math.Sincos(2 * math.Pi * float64(i) / float64(n))
		pts[i] = image.Pt(int(math.Round(cx+r*c)), int(math.Round(cy+r*s)))
	}
	DrawPolygon(dst, pts, col, thickness)
}

// DrawCross draws a small plus marker at p.
func DrawCross(dst *image.RGBA, p image.Point, size int, col color.Color, thickness int) {
	drawLine(dst, p.Sub(image.Pt(size, 0)), p.Add(image.Pt(size, 0)), col, thickness)
	drawLine(dst, p.Sub(image.Pt(0, size)), p.Add(image.Pt(0, size)), col, thickness)
}

// drawLine draws a line between two points using Bresenham.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := absInt(b.X - x0)
	dy := -absInt(b.Y - y0)
	sx, sy := -1, -1
	if x0 < b.X {
		sx = 1
	}
	if y0 < b.Y {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
