package export

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
)

// Overlay colors per role.
var (
	ColorPattern = color.RGBA{R: 255, A: 255}
	ColorSearch  = color.RGBA{G: 200, B: 255, A: 255}
	ColorOther   = color.RGBA{R: 255, G: 200, A: 255}
	ColorMatch   = color.RGBA{G: 255, A: 255}
)

func roleColor(r roi.Role) color.RGBA {
	switch r {
	case roi.RolePattern:
		return ColorPattern
	case roi.RoleSearch:
		return ColorSearch
	default:
		return ColorOther
	}
}

// RenderOverlay draws the outlines of rois onto a copy of img and marks each
// point of marks with a cross.
func RenderOverlay(img image.Image, rois []roi.Model, marks []roi.Point) *image.RGBA {
	dst := utils.CloneRGBA(img)
	offset := img.Bounds().Min
	for _, m := range rois {
		DrawROI(dst, m, offset, roleColor(m.Role))
	}
	for _, p := range marks {
		utils.DrawCross(dst, toPixel(p, offset), 6, ColorMatch, 2)
	}
	return dst
}

// DrawROI outlines m on dst. offset is the source image origin, subtracted
// from ROI coordinates.
func DrawROI(dst *image.RGBA, m roi.Model, offset image.Point, col color.Color) {
	c := m.Center()
	ox, oy := float64(offset.X), float64(offset.Y)
	switch m.Shape {
	case roi.ShapeCircle:
		utils.DrawCircle(dst, c.X-ox, c.Y-oy, m.Radius(), col, 2)
	case roi.ShapeAnnulus:
		utils.DrawCircle(dst, c.X-ox, c.Y-oy, m.Radius(), col, 2)
		utils.DrawCircle(dst, c.X-ox, c.Y-oy, m.InnerRadius(), col, 1)
	default:
		corners := m.Corners()
		pts := make([]image.Point, len(corners))
		for i, p := range corners {
			pts[i] = toPixel(p, offset)
		}
		utils.DrawPolygon(dst, pts, col, 2)
	}
}

func toPixel(p roi.Point, offset image.Point) image.Point {
	return image.Pt(int(math.Round(p.X))-offset.X, int(math.Round(p.Y))-offset.Y)
}
