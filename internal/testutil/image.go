package testutil

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/stretchr/testify/require"
)

// Gray levels used by the synthetic scenes.
const (
	Dark   = 40
	Bright = 200
)

// MarkerImage returns a w x h grayscale scene: a black background, a white
// rectangle and a black disc of radius r centered at (cx, cy) inside it.
// The disc is anti-aliased by 4x4 supersampling.
func MarkerImage(w, h int, rect image.Rectangle, cx, cy, r float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if !image.Pt(x, y).In(rect) {
				continue
			}
			var covered int
			for sy := range 4 {
				for sx := range 4 {
					px := float64(x) + (float64(sx)+0.5)/4
					py := float64(y) + (float64(sy)+0.5)/4
					if math.Hypot(px-cx, py-cy) <= r {
						covered++
					}
				}
			}
			img.SetGray(x, y, color.Gray{Y: uint8(255 - covered*255/16)})
		}
	}
	return img
}

// TexturedImage returns a w x h grayscale image of block x block tiles, each
// Dark or Bright, chosen by a deterministic generator.
func TexturedImage(w, h, block int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	cols, rows := (w+block-1)/block, (h+block-1)/block
	tiles := make([]uint8, cols*rows)
	for i := range tiles {
		tiles[i] = Dark
		if rng.IntN(2) == 1 {
			tiles[i] = Bright
		}
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Pix[y*img.Stride+x] = tiles[(y/block)*cols+x/block]
		}
	}
	return img
}

// GradientImage returns a horizontal ramp from 0 to 255.
func GradientImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / max(w-1, 1))
		}
	}
	return img
}

// UniformImage returns a w x h RGBA image filled with c.
func UniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// SaveImage writes img below dir and returns the path.
func SaveImage(t *testing.T, img image.Image, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, utils.SaveImage(path, img), "Failed to save image")
	return path
}

// CompareImages reports whether two images have the same size and every
// channel differs by at most tolerance (0..1).
func CompareImages(a, b image.Image, tolerance float64) bool {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}
	limit := tolerance * 65535
	for y := range ab.Dy() {
		for x := range ab.Dx() {
			r1, g1, b1, a1 := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, a2 := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			for _, d := range [4]float64{
				float64(r1) - float64(r2), float64(g1) - float64(g2),
				float64(b1) - float64(b2), float64(a1) - float64(a2),
			} {
				if math.Abs(d) > limit {
					return false
				}
			}
		}
	}
	return true
}
