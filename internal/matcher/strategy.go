package matcher

import (
	"strings"

	"golang.org/x/text/cases"
)

// Strategy selects the matching algorithm.
type Strategy int

const (
	// StrategyFeatures matches binary keypoint descriptors and fits a homography.
	StrategyFeatures Strategy = iota
	// StrategyRotated sweeps rotations (and optionally scales) of the pattern
	// and keeps the best normalized cross-correlation peak.
	StrategyRotated
)

// RotatedStrategyName is the only name that selects StrategyRotated.
const RotatedStrategyName = "tm_rot"

// ParseStrategy maps a strategy name to a Strategy. "tm_rot" (any case)
// selects rotation-swept correlation; every other name selects features.
func ParseStrategy(name string) Strategy {
	if cases.Fold().String(strings.TrimSpace(name)) == RotatedStrategyName {
		return StrategyRotated
	}
	return StrategyFeatures
}

func (s Strategy) String() string {
	if s == StrategyRotated {
		return RotatedStrategyName
	}
	return "orb"
}
