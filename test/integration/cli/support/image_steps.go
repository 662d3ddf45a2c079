package support

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/roikit/internal/testutil"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/cucumber/godog"
)

// aMarkerScene writes an 80x80 scene with a 5px disc at (cx, cy) on a
// white 60x60 card.
func (testCtx *TestContext) aMarkerScene(name string, cx, cy int) error {
	img := testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), float64(cx), float64(cy), 5)
	return utils.SaveImage(testCtx.Path(name), img)
}

func (testCtx *TestContext) aGradientImage(name string, w, h int) error {
	return utils.SaveImage(testCtx.Path(name), testutil.GradientImage(w, h))
}

func (testCtx *TestContext) theImageShouldBe(name string, w, h int) error {
	img, _, err := utils.LoadImage(testCtx.Path(name))
	if err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), w, h)
	}
	return nil
}

// RegisterImageSteps registers fixture image steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a marker scene "([^"]*)" with the marker at (\d+),(\d+)$`, testCtx.aMarkerScene)
	sc.Step(`^a gradient image "([^"]*)" of (\d+)x(\d+)$`, testCtx.aGradientImage)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
}
