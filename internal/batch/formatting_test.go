package batch

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []ItemResult {
	c := roi.Pt(30.25, 41)
	return []ItemResult{
		{File: "/p/a.png", Result: &matcher.Result{Found: true, Center: &c, Score: 97, Scale: 1, Strategy: "tm_rot"}},
		{File: "/p/b.png", Result: &matcher.Result{Score: 12, Strategy: "tm_rot", Reason: matcher.ReasonBelowThreshold}},
		{File: "/p/c.png", Error: "failed to load"},
	}
}

func TestFormatBatchResults_Text(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), "text")
	require.NoError(t, err)
	assert.Contains(t, out, "# /p/a.png\nfound at 30.25,41.00")
	assert.Contains(t, out, "# /p/b.png\nnot found")
	assert.Contains(t, out, "# /p/c.png\nerror: failed to load")

	unknown, err := formatBatchResults(sampleItems(), "yaml")
	require.NoError(t, err)
	assert.Equal(t, out, unknown)
}

func TestFormatBatchResults_JSON(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), "JSON")
	require.NoError(t, err)

	var doc struct {
		Images []ItemResult `json:"images"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Images, 3)
	assert.InDelta(t, 30.25, doc.Images[0].Result.Center.X, 1e-9)
	assert.Nil(t, doc.Images[1].Result.Center)
	assert.Equal(t, "failed to load", doc.Images[2].Error)

	empty, err := formatBatchResults(nil, "json")
	require.NoError(t, err)
	assert.Contains(t, empty, `"images": []`)
}

func TestFormatBatchResults_CSV(t *testing.T) {
	out, err := formatBatchResults(sampleItems(), "csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"/p/a.png", "true", "30.25", "41.00", "97", "0.00", "1.000", "tm_rot", "", ""}, rows[1])
	assert.Equal(t, "false", rows[2][1])
	assert.Equal(t, matcher.ReasonBelowThreshold, rows[2][8])
	assert.Equal(t, "failed to load", rows[3][9])
}

func TestResultStats(t *testing.T) {
	r := &Result{
		Items:       sampleItems(),
		ImagePaths:  []string{"a", "b", "c"},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
	s := r.Stats()
	assert.Equal(t, 3, s.TotalImages)
	assert.Equal(t, 2, s.ProcessedImages)
	assert.Equal(t, 1, s.FailedImages)
	assert.Equal(t, 1, s.FoundImages)
	assert.InDelta(t, 54.5, s.AverageScore, 1e-9)
	assert.Equal(t, time.Second, s.AveragePerImage)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)
}
