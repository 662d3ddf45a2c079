package config

import (
	"testing"

	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.InDelta(t, roi.DefaultMinimumInnerRadius, cfg.Geometry.MinInnerRadius, 0)
	assert.InDelta(t, 0.6, cfg.Geometry.DefaultInnerRatio, 0)
	assert.Equal(t, matcher.BackendGo, cfg.Matcher.Backend)
	assert.Equal(t, matcher.RotatedStrategyName, cfg.Matcher.Strategy)
	assert.Equal(t, 60, cfg.Matcher.ScoreThreshold)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"negative inner floor", func(c *Config) { c.Geometry.MinInnerRadius = -1 }, "min_inner_radius"},
		{"ratio zero", func(c *Config) { c.Geometry.DefaultInnerRatio = 0 }, "default_inner_ratio"},
		{"ratio above one", func(c *Config) { c.Geometry.DefaultInnerRatio = 1.5 }, "default_inner_ratio"},
		{"min size", func(c *Config) { c.Geometry.MinSize = 0 }, "min_size"},
		{"backend", func(c *Config) { c.Matcher.Backend = "cuda" }, "invalid matcher backend"},
		{"score", func(c *Config) { c.Matcher.ScoreThreshold = 101 }, "score_threshold"},
		{"rot range", func(c *Config) { c.Matcher.RotRange = 200 }, "rot_range"},
		{"rot step", func(c *Config) { c.Matcher.RotStep = 0 }, "rot_step"},
		{"scale", func(c *Config) { c.Matcher.ScaleMax = 0.5 }, "scale range"},
		{"min matches", func(c *Config) { c.Matcher.MinMatches = 3 }, "min_matches"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.Matcher.Backend = matcher.BackendAuto
	cfg.Geometry.DefaultInnerRatio = 1
	assert.NoError(t, cfg.Validate())
}

func TestToEditorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Geometry.MinInnerRadius = 4
	cfg.Geometry.DefaultInnerRatio = 0.5
	cfg.Geometry.MinSize = 12

	ec := cfg.ToEditorConfig()
	assert.InDelta(t, 12, ec.MinSize, 0)
	assert.Equal(t, roi.Radii{MinInner: 4, InnerRatio: 0.5}, ec.Radii)
	assert.InDelta(t, cfg.Geometry.RotateHandleOffset, ec.RotateHandleOffset, 0)
	assert.InDelta(t, cfg.Geometry.HitTolerance, ec.HitTolerance, 0)
}

func TestToMatcherConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.Backend = matcher.BackendAuto
	cfg.Matcher.Strategy = "orb"
	cfg.Matcher.RotRange = 15
	cfg.Matcher.MinMatches = 8

	mc := cfg.ToMatcherConfig()
	assert.Equal(t, matcher.BackendAuto, mc.Backend)
	assert.Equal(t, "orb", mc.Strategy)
	assert.Equal(t, 60, mc.ScoreThreshold)
	assert.InDelta(t, 15, mc.Options.RotRange, 0)
	assert.Equal(t, 8, mc.Options.MinMatches)
	assert.Equal(t, cfg.Matcher.RansacIterations, mc.Options.RansacIterations)
}
