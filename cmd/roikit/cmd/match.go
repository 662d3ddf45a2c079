package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/roikit/internal/config"
	"github.com/MeKo-Tech/roikit/internal/export"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/spf13/cobra"
)

// matchCmd locates a pattern ROI inside a search ROI.
var matchCmd = &cobra.Command{
	Use:   "match IMAGE",
	Short: "Locate a pattern ROI inside a search ROI",
	Long: `Cut the pattern ROI (from IMAGE or from --reference) and find it inside
the search ROI of IMAGE. Strategy tm_rot sweeps rotations and scales with
normalized cross-correlation; any other name uses ORB feature matching.

A match below the score threshold is reported as not found.

Examples:
  roikit match board.png --pattern '{"shape":"rect","x":20,"y":20,"w":40,"h":40}' \
      --search '{"shape":"rect","x":0,"y":0,"w":200,"h":200}' --rot-range 30
  roikit match shot.png --preset rois.yaml --reference golden.png --format json
  roikit match shot.png --preset rois.yaml --strategy orb --overlay found.png`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runMatchCommand,
}

// matchReport is the JSON output of match.
type matchReport struct {
	Image     string         `json:"image"`
	Reference string         `json:"reference,omitempty"`
	Backend   string         `json:"backend"`
	Pattern   roi.Record     `json:"pattern"`
	Search    roi.Record     `json:"search"`
	Result    matcher.Result `json:"result"`
	Overlay   string         `json:"overlay,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// matchQueryFromFlags builds the query from config with CLI overrides.
func matchQueryFromFlags(cmd *cobra.Command, cfg *config.Config) (matcher.Query, error) {
	rules := cfg.ToRadii()
	pattern, err := roleROI(cmd, "pattern", roi.RolePattern, rules)
	if err != nil {
		return matcher.Query{}, err
	}
	search, err := roleROI(cmd, "search", roi.RoleSearch, rules)
	if err != nil {
		return matcher.Query{}, err
	}

	q := matcher.Query{
		Pattern:        pattern,
		Search:         search,
		Strategy:       cfg.Matcher.Strategy,
		ScoreThreshold: cfg.Matcher.ScoreThreshold,
		RotRange:       cfg.Matcher.RotRange,
		ScaleMin:       cfg.Matcher.ScaleMin,
		ScaleMax:       cfg.Matcher.ScaleMax,
	}
	if cmd.Flags().Changed("strategy") {
		q.Strategy, _ = cmd.Flags().GetString("strategy")
	}
	if cmd.Flags().Changed("threshold") {
		q.ScoreThreshold, _ = cmd.Flags().GetInt("threshold")
	}
	if cmd.Flags().Changed("rot-range") {
		q.RotRange, _ = cmd.Flags().GetFloat64("rot-range")
	}
	if cmd.Flags().Changed("scale-min") {
		q.ScaleMin, _ = cmd.Flags().GetFloat64("scale-min")
	}
	if cmd.Flags().Changed("scale-max") {
		q.ScaleMax, _ = cmd.Flags().GetFloat64("scale-max")
	}
	return q, nil
}

func runMatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	q, err := matchQueryFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}
	ref := img
	refPath, _ := cmd.Flags().GetString("reference")
	if refPath != "" {
		if ref, _, err = utils.LoadImage(refPath); err != nil {
			return fmt.Errorf("reference image: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := matcher.New(cfg.ToMatcherConfig())
	start := time.Now()
	res, err := m.MatchAcross(ctx, ref, img, q)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	report := matchReport{
		Image:     args[0],
		Reference: refPath,
		Backend:   m.Backend(),
		Pattern:   q.Pattern.Record(),
		Search:    q.Search.Record(),
		Result:    res,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if overlay, _ := cmd.Flags().GetString("overlay"); overlay != "" {
		if err := utils.SaveImage(overlay, matchOverlay(img, q, res)); err != nil {
			return err
		}
		report.Overlay = overlay
	}

	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("format")
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, _ = fmt.Fprintf(out, "%s: %s\n", args[0], res)
	return nil
}

// matchOverlay draws the search ROI and, when found, the pattern outline at
// the match position.
func matchOverlay(img image.Image, q matcher.Query, res matcher.Result) *image.RGBA {
	rois := []roi.Model{q.Search}
	var marks []roi.Point
	if res.Found {
		located := q.Pattern.Clone()
		located.SetCenterSize(*res.Center, located.Width(), located.Height())
		located.SetAngle(q.Pattern.AngleDeg() + res.AngleDeg)
		rois = append(rois, located)
		marks = append(marks, *res.Center)
	}
	return export.RenderOverlay(img, rois, marks)
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("pattern", "", "pattern ROI as a JSON record")
	matchCmd.Flags().String("search", "", "search ROI as a JSON record")
	addPresetFlags(matchCmd)
	matchCmd.Flags().String("reference", "", "image the pattern is cut from (default: IMAGE)")
	matchCmd.Flags().String("strategy", "tm_rot", "matching strategy: tm_rot or orb")
	matchCmd.Flags().Int("threshold", 60, "minimum score (0-100) to report a match")
	matchCmd.Flags().Float64("rot-range", 0, "rotation sweep +/- degrees (tm_rot)")
	matchCmd.Flags().Float64("scale-min", 1, "minimum pattern scale (tm_rot)")
	matchCmd.Flags().Float64("scale-max", 1, "maximum pattern scale (tm_rot)")
	matchCmd.Flags().Duration("timeout", 0, "abort matching after this duration (0 = no limit)")
	matchCmd.Flags().StringP("format", "f", "text", "output format: text, json")
	matchCmd.Flags().String("overlay", "", "write an overlay PNG of the search ROI and the match")
}
