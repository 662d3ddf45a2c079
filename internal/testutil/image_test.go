package testutil

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerImage(t *testing.T) {
	img := MarkerImage(80, 80, image.Rect(10, 10, 70, 70), 30, 30, 5)
	assert.Equal(t, uint8(0), img.GrayAt(5, 5).Y, "background")
	assert.Equal(t, uint8(255), img.GrayAt(60, 60).Y, "rectangle")
	assert.Equal(t, uint8(0), img.GrayAt(30, 30).Y, "disc")
	edge := img.GrayAt(33, 33).Y
	assert.Positive(t, edge)
	assert.Less(t, edge, uint8(255))
}

func TestTexturedImageDeterministic(t *testing.T) {
	a := TexturedImage(64, 48, 8, 7)
	b := TexturedImage(64, 48, 8, 7)
	assert.Equal(t, a.Pix, b.Pix)

	var dark, bright int
	for _, v := range a.Pix {
		switch v {
		case Dark:
			dark++
		case Bright:
			bright++
		default:
			t.Fatalf("unexpected level %d", v)
		}
	}
	assert.Positive(t, dark)
	assert.Positive(t, bright)
	// tiles are uniform
	assert.Equal(t, a.GrayAt(8, 8), a.GrayAt(15, 15))
}

func TestGradientImage(t *testing.T) {
	img := GradientImage(256, 2)
	assert.Equal(t, uint8(0), img.GrayAt(0, 1).Y)
	assert.Equal(t, uint8(255), img.GrayAt(255, 0).Y)
}

func TestSaveImageAndCompare(t *testing.T) {
	img := UniformImage(5, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	path := SaveImage(t, img, t.TempDir(), "u.png")
	assert.True(t, FileExists(path))
	assert.False(t, DirExists(path))

	assert.True(t, CompareImages(img, img, 0))
	other := UniformImage(5, 4, color.RGBA{R: 12, G: 20, B: 30, A: 255})
	assert.False(t, CompareImages(img, other, 0))
	assert.True(t, CompareImages(img, other, 0.05))
	assert.False(t, CompareImages(img, UniformImage(4, 4, color.Black), 1))
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(root+"/go.mod"))
	assert.True(t, DirExists(GetFeaturesDir(t, "editor")))
}
