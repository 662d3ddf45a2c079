package matcher

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/roikit/internal/roi"
)

// Options tunes both strategies. Zero fields take the defaults.
type Options struct {
	RotRange  float64 // degrees, sweep is [-RotRange, +RotRange]
	RotStep   float64 // degrees
	ScaleMin  float64
	ScaleMax  float64
	ScaleStep float64

	MaxFeatures      int
	FastThreshold    int
	MaxMatches       int
	MinMatches       int
	RansacThreshold  float64 // px
	RansacIterations int
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		RotRange:         0,
		RotStep:          2,
		ScaleMin:         1,
		ScaleMax:         1,
		ScaleStep:        0.1,
		MaxFeatures:      1500,
		FastThreshold:    20,
		MaxMatches:       50,
		MinMatches:       6,
		RansacThreshold:  3,
		RansacIterations: 2000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if !(o.RotRange >= 0) || math.IsInf(o.RotRange, 0) {
		o.RotRange = 0
	}
	o.RotRange = math.Min(o.RotRange, 180)
	if !(o.RotStep > 0) {
		o.RotStep = d.RotStep
	}
	if !(o.ScaleMin > 0) {
		o.ScaleMin = d.ScaleMin
	}
	if !(o.ScaleMax >= o.ScaleMin) || math.IsInf(o.ScaleMax, 0) {
		o.ScaleMax = o.ScaleMin
	}
	if !(o.ScaleStep > 0) {
		o.ScaleStep = d.ScaleStep
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = d.MaxFeatures
	}
	if o.FastThreshold <= 0 {
		o.FastThreshold = d.FastThreshold
	}
	if o.MaxMatches <= 0 {
		o.MaxMatches = d.MaxMatches
	}
	switch {
	case o.MinMatches <= 0:
		o.MinMatches = d.MinMatches
	case o.MinMatches < 4:
		o.MinMatches = 4
	}
	if !(o.RansacThreshold > 0) {
		o.RansacThreshold = d.RansacThreshold
	}
	if o.RansacIterations <= 0 {
		o.RansacIterations = d.RansacIterations
	}
	return o
}

// angles returns the rotation sweep, always containing 0.
func (o Options) angles() []float64 {
	out := []float64{0}
	for a := o.RotStep; a <= o.RotRange+1e-9; a += o.RotStep {
		out = append(out, a, -a)
	}
	return out
}

// scales returns the scale sweep, always containing ScaleMin.
func (o Options) scales() []float64 {
	var out []float64
	for s := o.ScaleMin; s <= o.ScaleMax+1e-9; s += o.ScaleStep {
		out = append(out, s)
	}
	return out
}

// Result is the outcome of one matching call. When Found is false Center is
// nil and Score still carries the best score seen, for diagnostics.
type Result struct {
	Found    bool       `json:"found"`
	Center   *roi.Point `json:"center,omitempty"`
	Score    int        `json:"score"`
	AngleDeg float64    `json:"angle_deg"`
	Scale    float64    `json:"scale"`
	Matches  int        `json:"matches,omitempty"`
	Strategy string     `json:"strategy"`
	Reason   string     `json:"reason,omitempty"`
}

func (r Result) String() string {
	if !r.Found {
		return fmt.Sprintf("not found (%s, score=%d, %s)", r.Strategy, r.Score, r.Reason)
	}
	return fmt.Sprintf("found at %.2f,%.2f (%s, score=%d, angle=%.1f)", r.Center.X, r.Center.Y, r.Strategy, r.Score, r.AngleDeg)
}

func notFound(s Strategy, score int, reason string) Result {
	return Result{Strategy: s.String(), Score: score, Reason: reason}
}

// Reasons reported with not-found results.
const (
	ReasonBelowThreshold  = "score below threshold"
	ReasonPatternTooLarge = "pattern larger than search region"
	ReasonFewFeatures     = "insufficient feature matches"
	ReasonDegenerate      = "degenerate homography"
	ReasonFlatImage       = "no texture to correlate"
	ReasonInvalidROI      = "roi outside image or empty"
	ReasonBackendFailure  = "matching backend failed"
)

func scoreFromNCC(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(clamp(v, 0, 1) * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
