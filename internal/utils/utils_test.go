package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.webp", true},
		{"g.svg", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	for y := range 20 {
		for x := range 10 {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	require.NoError(t, SaveImage(path, img))

	loaded, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Bounds().Dx())
	assert.Equal(t, 20, loaded.Bounds().Dy())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, path, meta.Path)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImageErrors(t *testing.T) {
	_, _, err := LoadImage("")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage("file.svg")
	require.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorAs(t, err, &ipe)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestEncodeDecodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))

	out, meta, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 3, meta.Height)
	assert.Equal(t, uint8(200), ToGray(out).GrayAt(1, 1).Y)
}

func TestValidateImageConstraints(t *testing.T) {
	c := ImageConstraints{MaxWidth: 100, MaxHeight: 100, MinWidth: 2, MinHeight: 2}
	require.NoError(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 50, 50)), c))
	require.Error(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 1, 50)), c))
	require.Error(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 101, 50)), c))
	require.Error(t, ValidateImageConstraints(nil, c))
}

func TestToGray(t *testing.T) {
	t.Run("origin gray is returned as is", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 3, 3))
		assert.Same(t, g, ToGray(g))
	})

	t.Run("sub image is rebased", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 10, 10))
		g.SetGray(5, 6, color.Gray{Y: 77})
		sub := g.SubImage(image.Rect(4, 4, 8, 8))
		out := ToGray(sub)
		assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
		assert.Equal(t, uint8(77), out.GrayAt(1, 2).Y)
	})

	t.Run("rgba", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(2, 2, 4, 4))
		img.Set(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		out := ToGray(img)
		assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
		assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(0), out.GrayAt(1, 1).Y)
	})

	t.Run("nrgba", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
		assert.Equal(t, uint8(100), ToGray(img).GrayAt(0, 0).Y)
	})

	t.Run("nil", func(t *testing.T) {
		assert.True(t, ToGray(nil).Bounds().Empty())
	})
}

func TestDrawOverlay(t *testing.T) {
	dst := CloneRGBA(image.NewGray(image.Rect(0, 0, 40, 40)))
	red := color.RGBA{R: 255, A: 255}
	DrawPolygon(dst, []image.Point{{5, 5}, {30, 5}, {30, 30}, {5, 30}}, red, 1)
	assert.Equal(t, red, dst.RGBAAt(5, 5))
	assert.Equal(t, red, dst.RGBAAt(17, 5))
	assert.Equal(t, red, dst.RGBAAt(30, 17))
	assert.NotEqual(t, red, dst.RGBAAt(17, 17))

	DrawCircle(dst, 20, 20, 10, red, 1)
	assert.Equal(t, red, dst.RGBAAt(30, 20))
	assert.Equal(t, red, dst.RGBAAt(20, 10))

	// out of bounds drawing is clipped
	DrawCross(dst, image.Pt(39, 39), 5, red, 3)
	assert.Equal(t, red, dst.RGBAAt(39, 39))
}
