package cmd

import (
	"encoding/csv"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/export"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerScene(cx, cy float64) *image.Gray {
	return testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), cx, cy, 5)
}

func TestCropCommand(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SaveImage(t, testutil.GradientImage(100, 60), dir, "board.png")
	out := filepath.Join(dir, "crop.png")
	mask := filepath.Join(dir, "crop_mask.png")

	output, err := executeCommand(t, "crop", img,
		"--roi", recordJSON(t, roi.NewRect(roi.RoleInspection, 10, 20, 30, 15, 0)),
		"-o", out, "--mask", mask, "--format", "json")
	require.NoError(t, err)

	var report cropReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, [4]int{10, 20, 30, 15}, report.CropRect)
	assert.Equal(t, out, report.CropFile)
	assert.Equal(t, mask, report.MaskFile)
	assert.True(t, testutil.FileExists(out))
	assert.True(t, testutil.FileExists(mask))
}

func TestMaskCommand(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SaveImage(t, testutil.GradientImage(100, 60), dir, "board.png")
	out := filepath.Join(dir, "ring.png")

	output, err := executeCommand(t, "mask", img,
		"--roi", recordJSON(t, roi.NewAnnulus(roi.RoleInspection, 50, 30, 20, 8, 0, roi.DefaultRadii())),
		"-o", out, "--format", "text")
	require.NoError(t, err)

	assert.Contains(t, output, "annulus 40x40 at 30,10")
	assert.Contains(t, output, "mask: "+out)
	assert.NotContains(t, output, "crop: ")
	assert.True(t, testutil.FileExists(out))
}

func TestRoleROIRequiresInput(t *testing.T) {
	c := &cobra.Command{Use: "probe"}
	c.Flags().String("roi", "", "")
	addPresetFlags(c)

	_, err := roleROI(c, "roi", roi.RoleSearch, roi.DefaultRadii())
	require.EqualError(t, err, "--roi or --preset is required")

	require.NoError(t, c.Flags().Set("roi", `{"shape":"circle","cx":5,"cy":5,"r":3}`))
	m, err := roleROI(c, "roi", roi.RoleSearch, roi.DefaultRadii())
	require.NoError(t, err)
	assert.Equal(t, roi.ShapeCircle, m.Shape)
	assert.Equal(t, roi.RoleSearch, m.Role)
}

func TestMatchCommand(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SaveImage(t, markerScene(30, 30), dir, "scene.png")
	overlay := filepath.Join(dir, "overlay.png")

	output, err := executeCommand(t, "match", img,
		"--pattern", recordJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
		"--search", recordJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
		"--strategy", "tm_rot", "--rot-range", "0",
		"--overlay", overlay, "--format", "json")
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.True(t, report.Result.Found, report.Result.String())
	assert.InDelta(t, 30, report.Result.Center.X, 0.5)
	assert.InDelta(t, 30, report.Result.Center.Y, 0.5)
	assert.Equal(t, "go", report.Backend)
	assert.Equal(t, overlay, report.Overlay)
	assert.True(t, testutil.FileExists(overlay))
}

func TestPresetAddListAndBatch(t *testing.T) {
	dir := t.TempDir()
	presetFile := filepath.Join(dir, "rois.yaml")

	output, err := executeCommand(t, "preset", "add", presetFile, "fiducial",
		"--roi", recordJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
		"--roi", recordJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
		"--description", "board fiducial")
	require.NoError(t, err)
	assert.Contains(t, output, "saved fiducial with 2 rois")

	output, err = executeCommand(t, "preset", "list", presetFile)
	require.NoError(t, err)
	assert.Contains(t, output, "fiducial (2 rois)")

	ref := testutil.SaveImage(t, markerScene(30, 30), dir, "golden.png")
	shots := filepath.Join(dir, "shots")
	testutil.SaveImage(t, markerScene(30, 30), shots, "a.png")
	testutil.SaveImage(t, markerScene(45, 40), shots, "b.png")
	results := filepath.Join(dir, "results.csv")

	_, err = executeCommand(t, "batch", shots, "--preset", presetFile, "--reference", ref,
		"--format", "csv", "--output", results, "--quiet")
	require.NoError(t, err)

	f, err := os.Open(results)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "file", rows[0][0])
	assert.True(t, strings.HasSuffix(rows[1][0], "a.png"))
	assert.Equal(t, "true", rows[1][1])
	assert.Equal(t, "true", rows[2][1])
	x, err := strconv.ParseFloat(rows[2][2], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(rows[2][3], 64)
	require.NoError(t, err)
	assert.InDelta(t, 45, x, 0.5)
	assert.InDelta(t, 40, y, 0.5)
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SaveImage(t, testutil.GradientImage(100, 60), dir, "board.png")
	out := filepath.Join(dir, "dataset")

	output, err := executeCommand(t, "export", img,
		"--roi", recordJSON(t, roi.NewRect(roi.RoleInspection, 10, 10, 20, 20, 30)),
		"--roi", recordJSON(t, roi.NewCircle(roi.RolePattern, 60, 30, 12, 0)),
		"--dir", out, "--overlay")
	require.NoError(t, err)
	assert.Contains(t, output, "2 of 2 rois exported")

	man, err := export.ReadManifest(filepath.Join(out, "board"+export.ManifestSuffix))
	require.NoError(t, err)
	require.Len(t, man.Entries, 2)
	assert.Equal(t, "board_overlay.png", man.Overlay)
	assert.True(t, testutil.FileExists(filepath.Join(out, man.Entries[1].CropFile)))
	assert.True(t, testutil.FileExists(filepath.Join(out, man.Entries[1].MaskFile)))
}

func TestConfigInitCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "roikit.yaml")

	output, err := executeCommand(t, "config", "init", file)
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration written to "+file)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "matcher:")
	assert.Contains(t, string(data), "score_threshold: 60")
}

func TestConfigShowCommand(t *testing.T) {
	output, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "matcher:")
	assert.Contains(t, output, "backend: go")
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "board_crop.png", defaultOutput("/tmp/x/board.png", "crop"))
	assert.Equal(t, "scan_mask.png", defaultOutput("scan.tiff", "mask"))
}

func TestBenchCommand(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SaveImage(t, markerScene(30, 30), dir, "scene.png")

	output, err := executeCommand(t, "bench", img,
		"--pattern", recordJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
		"--search", recordJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
		"--iterations", "2", "--format", "json")
	require.NoError(t, err)

	var rows []benchRow
	require.NoError(t, json.Unmarshal([]byte(output), &rows))
	require.NotEmpty(t, rows)
	assert.Equal(t, "tm_rot", rows[0].Strategy)
	assert.Equal(t, "go", rows[0].Backend)
	assert.Equal(t, 2, rows[0].Iterations)
	assert.True(t, rows[0].Found)
	assert.Empty(t, rows[0].Error)
}
