package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/roikit/internal/export"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/spf13/cobra"
)

// exportCmd writes crops, masks and metadata of a ROI set for each image.
var exportCmd = &cobra.Command{
	Use:   "export IMAGE...",
	Short: "Export ROI crops, masks and metadata as a dataset",
	Long: `For every image write one de-rotated crop PNG per ROI, optionally its
mask, and a <image>_rois.json manifest describing each entry.

Examples:
  roikit export shots/*.png --preset rois.yaml --dir dataset
  roikit export board.png --roi '{"shape":"circle","cx":50,"cy":50,"r":20}' --overlay`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runExportCommand,
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rois, err := allROIs(cmd, cfg.ToRadii())
	if err != nil {
		return err
	}

	opts := export.Options{
		Dir:        cfg.Export.Dir,
		WriteMasks: cfg.Export.WriteMasks,
		Overlay:    cfg.Export.Overlay,
	}
	if cmd.Flags().Changed("dir") {
		opts.Dir, _ = cmd.Flags().GetString("dir")
	}
	if cmd.Flags().Changed("masks") {
		opts.WriteMasks, _ = cmd.Flags().GetBool("masks")
	}
	if cmd.Flags().Changed("overlay") {
		opts.Overlay, _ = cmd.Flags().GetBool("overlay")
	}
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")

	var written, failed int
	for _, path := range args {
		img, _, err := utils.LoadImage(path)
		if err == nil {
			var man *export.Manifest
			if man, err = export.Export(img, path, rois, opts); err == nil {
				written += len(man.Entries)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d rois exported\n", path, len(man.Entries), len(rois))
				continue
			}
		}
		if !continueOnError {
			return fmt.Errorf("export %s: %w", path, err)
		}
		failed++
		slog.Warn("Export failed", "image", path, "error", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d crops written to %s", written, opts.Dir)
	if failed > 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), ", %d images failed", failed)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringArray("roi", nil, "ROI as a JSON record (repeatable)")
	addPresetFlags(exportCmd)
	exportCmd.Flags().String("dir", "export", "output directory")
	exportCmd.Flags().Bool("masks", true, "write a mask PNG next to every crop")
	exportCmd.Flags().Bool("overlay", false, "write an overlay PNG per image")
	exportCmd.Flags().Bool("continue-on-error", false, "skip images that cannot be exported")
}
