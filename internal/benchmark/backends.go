package benchmark

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/roikit/internal/matcher"
)

// Comparison is one strategy timed on both backends.
type Comparison struct {
	Strategy        string
	Go              Result
	Native          Result
	GoMatch         matcher.Result
	NativeMatch     matcher.Result
	NativeAvailable bool
	// Speedup is Go time over native time; above 1 means native is faster.
	Speedup float64
	// CenterDelta is the distance between both centers when both found one.
	CenterDelta float64
}

func (c Comparison) String() string {
	if !c.NativeAvailable {
		return fmt.Sprintf("%s: native backend not available, go only: avg %v (%s)",
			c.Strategy, c.Go.Average(), c.GoMatch)
	}
	speed := "same speed"
	switch {
	case c.Speedup > 1:
		speed = fmt.Sprintf("native %.2fx faster", c.Speedup)
	case c.Speedup > 0 && c.Speedup < 1:
		speed = fmt.Sprintf("native %.2fx slower", 1/c.Speedup)
	}
	return fmt.Sprintf("%s: go avg %v, native avg %v (%s), center delta %.2f px",
		c.Strategy, c.Go.Average(), c.Native.Average(), speed, c.CenterDelta)
}

// CompareBackends runs q once per strategy on the Go backend and, when it is
// linked, on the OpenCV backend, iterations times each. cfg supplies the
// matching options; its Backend field is ignored. A cancelled ctx aborts the
// comparison.
func CompareBackends(ctx context.Context, ref, img image.Image, q matcher.Query, cfg matcher.Config, strategies []string, iterations int) ([]Comparison, error) {
	if len(strategies) == 0 {
		strategies = []string{q.Strategy}
	}

	goCfg, nativeCfg := cfg, cfg
	goCfg.Backend = matcher.BackendGo
	nativeCfg.Backend = matcher.BackendOpenCV
	goM, nativeM := matcher.New(goCfg), matcher.New(nativeCfg)

	out := make([]Comparison, 0, len(strategies))
	for _, name := range strategies {
		qs := q
		qs.Strategy = name
		c := Comparison{Strategy: matcher.ParseStrategy(name).String()}

		var err error
		c.Go, c.GoMatch, err = timeMatch(ctx, goM, ref, img, qs, iterations)
		if err != nil {
			return out, err
		}
		if nativeM.Available() == nil {
			c.NativeAvailable = true
			c.Native, c.NativeMatch, err = timeMatch(ctx, nativeM, ref, img, qs, iterations)
			if err != nil {
				return out, err
			}
			if c.Native.Duration > 0 {
				c.Speedup = float64(c.Go.Duration) / float64(c.Native.Duration)
			}
			if c.GoMatch.Found && c.NativeMatch.Found {
				c.CenterDelta = math.Hypot(c.GoMatch.Center.X-c.NativeMatch.Center.X, c.GoMatch.Center.Y-c.NativeMatch.Center.Y)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// timeMatch returns the timing and the last match result. Context errors
// are returned directly; other failures end up in Result.Error.
func timeMatch(ctx context.Context, m *matcher.Matcher, ref, img image.Image, q matcher.Query, iterations int) (Result, matcher.Result, error) {
	var last matcher.Result
	suite := NewSuite()
	name := m.Backend() + "/" + matcher.ParseStrategy(q.Strategy).String()
	suite.Add(name, func() error {
		res, err := m.MatchAcross(ctx, ref, img, q)
		if err != nil {
			return err
		}
		last = res
		return nil
	})
	r := suite.Run(name, iterations)
	if err := ctx.Err(); err != nil {
		return r, last, err
	}
	return r, last, nil
}
