package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MeKo-Tech/roikit/internal/batch"
	"github.com/MeKo-Tech/roikit/internal/config"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/spf13/cobra"
)

// batchCmd runs one pattern/search query over many images in parallel.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Match a pattern ROI across many images in parallel",
	Long: `Run the same pattern/search query over every image found under the given
files and directories using a pool of parallel workers. Results keep the
discovery order.

Use --reference to cut the pattern from a golden image once; otherwise the
pattern is cut from each image itself.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  roikit batch shots/ --preset rois.yaml --reference golden.png
  roikit batch shots/ --recursive --workers 8 --format csv --output results.csv
  roikit batch a.png b.png --preset rois.yaml --overlay-dir overlays --stats`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
// Changed CLI flags override config file values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	q, err := matchQueryFromFlags(cmd, cfg)
	if err != nil {
		return nil, err
	}

	bc := &batch.Config{
		Pattern:         q.Pattern,
		Search:          q.Search,
		Strategy:        q.Strategy,
		ScoreThreshold:  q.ScoreThreshold,
		RotRange:        q.RotRange,
		ScaleMin:        q.ScaleMin,
		ScaleMax:        q.ScaleMax,
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
		Format:          cfg.Output.Format,
		OutputFile:      cfg.Output.File,
	}
	bc.ReferencePath, _ = cmd.Flags().GetString("reference")

	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if bc.Workers <= 0 {
		bc.Workers = runtime.NumCPU()
	}
	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("recursive") {
		bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("format") || bc.Format == "" {
		bc.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		bc.OutputFile, _ = cmd.Flags().GetString("output")
	}

	bc.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")

	return bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !bc.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Matching across %d inputs...\n", len(args))
	}

	result, err := batch.ProcessBatch(ctx, args, matcher.New(cfg.ToMatcherConfig()), bc)
	if err != nil {
		return err
	}

	if err := result.SaveResults(bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	if bc.ShowStats {
		result.PrintStats(bc.Quiet)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Matching flags (shared with match)
	batchCmd.Flags().String("pattern", "", "pattern ROI as a JSON record")
	batchCmd.Flags().String("search", "", "search ROI as a JSON record")
	addPresetFlags(batchCmd)
	batchCmd.Flags().String("reference", "", "golden image the pattern is cut from (default: each image)")
	batchCmd.Flags().String("strategy", "tm_rot", "matching strategy: tm_rot or orb")
	batchCmd.Flags().Int("threshold", 60, "minimum score (0-100) to report a match")
	batchCmd.Flags().Float64("rot-range", 0, "rotation sweep +/- degrees (tm_rot)")
	batchCmd.Flags().Float64("scale-min", 1, "minimum pattern scale (tm_rot)")
	batchCmd.Flags().Float64("scale-max", 1, "maximum pattern scale (tm_rot)")

	// Output flags
	batchCmd.Flags().StringP("format", "f", "text", "output format: text, json, csv")
	batchCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	batchCmd.Flags().String("overlay-dir", "", "directory to save overlay images")

	// Parallel processing flags
	batchCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (0 = one per CPU)")
	batchCmd.Flags().Bool("continue-on-error", true, "keep going when an image fails")

	// File discovery flags
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", nil, "file patterns to include (default: all supported images)")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress and monitoring flags
	batchCmd.Flags().Bool("progress", false, "show progress bar")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
	batchCmd.Flags().Bool("stats", false, "show processing statistics")
	batchCmd.Flags().Duration("progress-interval", 500*time.Millisecond, "progress update interval")
}
