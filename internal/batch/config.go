package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
)

// Config holds all configuration for batch matching.
type Config struct {
	// Matching
	Pattern        roi.Model
	Search         roi.Model
	ReferencePath  string // image the pattern is cut from; empty cuts it from every target
	Strategy       string
	ScoreThreshold int
	RotRange       float64
	ScaleMin       float64
	ScaleMax       float64

	// Parallel processing
	Workers         int
	ContinueOnError bool

	// File discovery
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output
	OverlayDir string
	Format     string
	OutputFile string

	// Progress
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
}

// query returns the per-image matcher query.
func (c *Config) query() matcher.Query {
	return matcher.Query{
		Pattern:        c.Pattern,
		Search:         c.Search,
		Strategy:       c.Strategy,
		ScoreThreshold: c.ScoreThreshold,
		RotRange:       c.RotRange,
		ScaleMin:       c.ScaleMin,
		ScaleMax:       c.ScaleMax,
	}
}

// ItemResult is the outcome for one image. Error is set when the image could
// not be loaded or matched; Result is nil then.
type ItemResult struct {
	File     string          `json:"file"`
	Width    int             `json:"width,omitempty"`
	Height   int             `json:"height,omitempty"`
	Result   *matcher.Result `json:"result,omitempty"`
	Overlay  string          `json:"overlay,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"-"`
}

// Found reports whether the pattern was located in this image.
func (i ItemResult) Found() bool { return i.Result != nil && i.Result.Found }

// Result holds the result of batch processing, in input order.
type Result struct {
	Items       []ItemResult
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	TotalImages      int
	ProcessedImages  int
	FailedImages     int
	FoundImages      int
	AverageScore     float64
	WorkerCount      int
	TotalDuration    time.Duration
	AveragePerImage  time.Duration
	ThroughputPerSec float64
}

// Stats computes processing statistics.
func (r *Result) Stats() Stats {
	s := Stats{
		TotalImages:   len(r.ImagePaths),
		WorkerCount:   r.WorkerCount,
		TotalDuration: r.Duration,
	}
	var scoreSum int
	for _, it := range r.Items {
		if it.Error != "" {
			s.FailedImages++
			continue
		}
		s.ProcessedImages++
		if it.Result != nil {
			scoreSum += it.Result.Score
		}
		if it.Found() {
			s.FoundImages++
		}
	}
	if s.ProcessedImages > 0 {
		s.AverageScore = float64(scoreSum) / float64(s.ProcessedImages)
		s.AveragePerImage = r.Duration / time.Duration(s.ProcessedImages)
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.ProcessedImages) / r.Duration.Seconds()
	}
	return s
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Items, format)
}

// SaveResults saves the formatted results to a file or stdout.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "Results written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(os.Stdout, output)
	}

	return nil
}

// PrintStats prints processing statistics to stdout.
func (r *Result) PrintStats(quiet bool) {
	if !quiet {
		r.WriteStats(os.Stdout)
	}
}

// WriteStats writes processing statistics to w.
func (r *Result) WriteStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", stats.ProcessedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(w, "  Found: %d\n", stats.FoundImages)
	_, _ = fmt.Fprintf(w, "  Avg score: %.1f\n", stats.AverageScore)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
