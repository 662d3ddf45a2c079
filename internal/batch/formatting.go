package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatBatchResults formats items as text, json or csv. Unknown formats
// fall back to text.
func formatBatchResults(items []ItemResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return formatJSON(items)
	case "csv":
		return formatCSV(items)
	default:
		return formatText(items)
	}
}

func formatJSON(items []ItemResult) (string, error) {
	doc := struct {
		Images []ItemResult `json:"images"`
	}{Images: items}
	if doc.Images == nil {
		doc.Images = []ItemResult{}
	}
	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}

var csvHeader = []string{"file", "found", "x", "y", "score", "angle_deg", "scale", "strategy", "reason", "error"}

func formatCSV(items []ItemResult) (string, error) {
	var out strings.Builder
	w := csv.NewWriter(&out)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, it := range items {
		row := []string{it.File, "false", "", "", "0", "", "", "", "", it.Error}
		if r := it.Result; r != nil {
			row[1] = strconv.FormatBool(r.Found)
			if r.Center != nil {
				row[2] = strconv.FormatFloat(r.Center.X, 'f', 2, 64)
				row[3] = strconv.FormatFloat(r.Center.Y, 'f', 2, 64)
			}
			row[4] = strconv.Itoa(r.Score)
			row[5] = strconv.FormatFloat(r.AngleDeg, 'f', 2, 64)
			row[6] = strconv.FormatFloat(r.Scale, 'f', 3, 64)
			row[7] = r.Strategy
			row[8] = r.Reason
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return out.String(), w.Error()
}

func formatText(items []ItemResult) (string, error) {
	var out strings.Builder
	for i, it := range items {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(fmt.Sprintf("# %s\n", it.File))
		switch {
		case it.Error != "":
			out.WriteString("error: " + it.Error + "\n")
		case it.Result != nil:
			out.WriteString(it.Result.String() + "\n")
		}
	}
	return out.String(), nil
}
