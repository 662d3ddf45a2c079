package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/roikit/internal/preset"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/spf13/cobra"
)

// addPresetFlags registers the flags selecting ROIs from a preset file.
func addPresetFlags(c *cobra.Command) {
	c.Flags().String("preset", "", "preset file (.yaml, .yml or .json) holding named ROI sets")
	c.Flags().String("preset-name", "", "preset to use (default: the only preset in the file)")
}

// parseROI decodes a JSON roi record given on the command line.
func parseROI(raw string, rules roi.Radii) (roi.Model, error) {
	var rec roi.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return roi.Model{}, fmt.Errorf("invalid roi %q: %w", raw, err)
	}
	return roi.FromRecord(rec, rules)
}

// presetROIs returns the ROIs of the preset selected by --preset and
// --preset-name. ok is false when no preset file was given.
func presetROIs(c *cobra.Command, rules roi.Radii) (models []roi.Model, ok bool, err error) {
	path, _ := c.Flags().GetString("preset")
	if path == "" {
		return nil, false, nil
	}
	store, err := preset.Load(path, rules)
	if err != nil {
		return nil, true, err
	}
	name, _ := c.Flags().GetString("preset-name")
	if name == "" {
		names := store.Names()
		if len(names) != 1 {
			return nil, true, fmt.Errorf("%s holds %d presets, choose one with --preset-name", path, len(names))
		}
		name = names[0]
	}
	models, err = store.Get(name)
	return models, true, err
}

// roleROI resolves one ROI either from the JSON flag named flag or from the
// selected preset by role.
func roleROI(c *cobra.Command, flag string, role roi.Role, rules roi.Radii) (roi.Model, error) {
	if raw, _ := c.Flags().GetString(flag); raw != "" {
		m, err := parseROI(raw, rules)
		if err != nil {
			return roi.Model{}, err
		}
		if m.Role == "" {
			m.Role = role
		}
		return m, nil
	}
	models, ok, err := presetROIs(c, rules)
	if err != nil {
		return roi.Model{}, err
	}
	if !ok {
		return roi.Model{}, fmt.Errorf("--%s or --preset is required", flag)
	}
	for _, m := range models {
		if role == "" || m.Role == role {
			return m, nil
		}
	}
	return roi.Model{}, fmt.Errorf("%w: no %s roi in preset", preset.ErrNotFound, role)
}

// allROIs collects every --roi value, or the whole preset.
func allROIs(c *cobra.Command, rules roi.Radii) ([]roi.Model, error) {
	raws, _ := c.Flags().GetStringArray("roi")
	if len(raws) > 0 {
		out := make([]roi.Model, 0, len(raws))
		for _, raw := range raws {
			m, err := parseROI(raw, rules)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
	models, ok, err := presetROIs(c, rules)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("--roi or --preset is required")
	}
	return models, nil
}
