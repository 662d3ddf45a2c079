package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/benchmark"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/spf13/cobra"
)

// benchCmd times matching on the Go and OpenCV backends.
var benchCmd = &cobra.Command{
	Use:   "bench IMAGE",
	Short: "Compare matching speed of the Go and OpenCV backends",
	Long: `Run the match described by --pattern/--search (or --preset) repeatedly on
each backend and report timings, allocations and how far the two centers
are apart. Without an OpenCV build only the Go backend is timed.

Examples:
  roikit bench board.png --preset rois.yaml --iterations 20
  roikit bench board.png --preset rois.yaml --strategies tm_rot,orb --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBenchCommand,
}

// benchRow is one backend/strategy line of the JSON output.
type benchRow struct {
	Strategy   string  `json:"strategy"`
	Backend    string  `json:"backend"`
	Iterations int     `json:"iterations"`
	AvgMs      float64 `json:"avg_ms"`
	AllocKB    int64   `json:"alloc_kb"`
	Found      bool    `json:"found"`
	Score      int     `json:"score"`
	Error      string  `json:"error,omitempty"`
}

func newBenchRow(strategy, backend string, r benchmark.Result, found bool, score int) benchRow {
	row := benchRow{
		Strategy:   strategy,
		Backend:    backend,
		Iterations: r.Iterations,
		AvgMs:      float64(r.Average().Microseconds()) / 1000,
		AllocKB:    r.AllocatedKB(),
		Found:      found,
		Score:      score,
	}
	if r.Error != nil {
		row.Error = r.Error.Error()
	}
	return row
}

func runBenchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	q, err := matchQueryFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}

	strategies, _ := cmd.Flags().GetStringSlice("strategies")
	iterations, _ := cmd.Flags().GetInt("iterations")
	comps, err := benchmark.CompareBackends(cmd.Context(), img, img, q, cfg.ToMatcherConfig(), strategies, iterations)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("format")
	if strings.EqualFold(format, "json") {
		rows := make([]benchRow, 0, 2*len(comps))
		for _, c := range comps {
			rows = append(rows, newBenchRow(c.Strategy, "go", c.Go, c.GoMatch.Found, c.GoMatch.Score))
			if c.NativeAvailable {
				rows = append(rows, newBenchRow(c.Strategy, "opencv", c.Native, c.NativeMatch.Found, c.NativeMatch.Score))
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	for _, c := range comps {
		_, _ = fmt.Fprintln(out, c.String())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().String("pattern", "", "pattern ROI as a JSON record")
	benchCmd.Flags().String("search", "", "search ROI as a JSON record")
	addPresetFlags(benchCmd)
	benchCmd.Flags().StringSlice("strategies", []string{"tm_rot"}, "strategies to time")
	benchCmd.Flags().Int("iterations", 5, "runs per backend and strategy")
	benchCmd.Flags().Int("threshold", 60, "minimum score (0-100) to report a match")
	benchCmd.Flags().Float64("rot-range", 0, "rotation sweep +/- degrees (tm_rot)")
	benchCmd.Flags().Float64("scale-min", 1, "minimum pattern scale (tm_rot)")
	benchCmd.Flags().Float64("scale-max", 1, "maximum pattern scale (tm_rot)")
	benchCmd.Flags().StringP("format", "f", "text", "output format: text, json")
}
