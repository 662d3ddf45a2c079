package roi

import "math"

const (
	// DefaultMinimumInnerRadius is the pixel floor applied to annulus inner radii
	// once the outer radius is large enough to hold it.
	DefaultMinimumInnerRadius = 10.0

	// DefaultInnerRatio is the inner/outer ratio used when no inner radius is given.
	DefaultInnerRatio = 0.6
)

// Radii holds the annulus radius rules. The zero value is not useful; use
// DefaultRadii or NewRadii.
type Radii struct {
	MinInner   float64
	InnerRatio float64
}

// DefaultRadii returns the stock annulus rules.
func DefaultRadii() Radii {
	return Radii{MinInner: DefaultMinimumInnerRadius, InnerRatio: DefaultInnerRatio}
}

// NewRadii builds radius rules, falling back to defaults for invalid values.
func NewRadii(minInner, innerRatio float64) Radii {
	r := DefaultRadii()
	if isFinite(minInner) && minInner >= 0 {
		r.MinInner = minInner
	}
	if isFinite(innerRatio) && innerRatio > 0 && innerRatio <= 1 {
		r.InnerRatio = innerRatio
	}
	return r
}

// ClampInner returns requested clamped into [0, outer]. When outer can hold the
// floor the result is raised to it; smaller annuli degenerate toward a filled
// circle instead. Non-finite or non-positive outer radii yield 0.
func (r Radii) ClampInner(requested, outer float64) float64 {
	if !isFinite(outer) || outer <= 0 {
		return 0
	}
	switch {
	case math.IsNaN(requested):
		requested = 0
	case requested < 0:
		requested = 0
	case requested > outer:
		requested = outer
	}
	if outer >= r.MinInner && requested < r.MinInner {
		requested = r.MinInner
	}
	return requested
}

// ResolveInner is ClampInner with a default of outer*InnerRatio for
// non-positive or NaN requests.
func (r Radii) ResolveInner(requested, outer float64) float64 {
	if math.IsNaN(requested) || requested <= 0 {
		requested = outer * r.InnerRatio
	}
	return r.ClampInner(requested, outer)
}

// ClampInnerRadius applies DefaultRadii().ClampInner.
func ClampInnerRadius(requested, outer float64) float64 {
	return DefaultRadii().ClampInner(requested, outer)
}

// ResolveInnerRadius applies DefaultRadii().ResolveInner.
func ResolveInnerRadius(requested, outer float64) float64 {
	return DefaultRadii().ResolveInner(requested, outer)
}
