package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/roikit/internal/preset"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/spf13/cobra"
)

// presetCmd groups the preset file subcommands.
var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage ROI preset files",
	Long: `Presets are YAML or JSON files holding named ROI sets. The file format is
chosen by extension (.yaml, .yml or .json).

Examples:
  roikit preset list rois.yaml
  roikit preset add rois.yaml fiducial --roi '{"shape":"rect","role":"pattern","x":10,"y":10,"w":30,"h":30}' \
      --roi '{"shape":"rect","role":"search","x":0,"y":0,"w":200,"h":200}'
  roikit preset remove rois.yaml fiducial`,
}

var presetListCmd = &cobra.Command{
	Use:          "list FILE",
	Short:        "List presets and their ROIs",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Load(args[0], GetConfig().ToRadii())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range store.Names() {
			models, err := store.Get(name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s (%d rois)\n", name, len(models))
			for _, m := range models {
				_, _ = fmt.Fprintf(out, "  %s\n", m)
			}
		}
		return nil
	},
}

var presetAddCmd = &cobra.Command{
	Use:          "add FILE NAME",
	Short:        "Add or replace a preset",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := GetConfig().ToRadii()
		store, err := loadOrCreatePreset(args[0], rules)
		if err != nil {
			return err
		}
		models, err := allROIs(cmd, rules)
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		store.Put(args[1], desc, models)
		if err := store.Save(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s with %d rois to %s\n", args[1], len(models), args[0])
		return nil
	},
}

var presetRemoveCmd = &cobra.Command{
	Use:          "remove FILE NAME",
	Short:        "Remove a preset",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Load(args[0], GetConfig().ToRadii())
		if err != nil {
			return err
		}
		if !store.Delete(args[1]) {
			return fmt.Errorf("%w: %q", preset.ErrNotFound, args[1])
		}
		return store.Save(args[0])
	},
}

// loadOrCreatePreset loads path, or returns an empty store when it does not
// exist yet.
func loadOrCreatePreset(path string, rules roi.Radii) (*preset.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return preset.NewStore(rules), nil
	}
	return preset.Load(path, rules)
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd, presetAddCmd, presetRemoveCmd)

	presetAddCmd.Flags().StringArray("roi", nil, "ROI as a JSON record (repeatable)")
	presetAddCmd.Flags().String("description", "", "preset description")
}
