package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/editor"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
)

const infoLevel = "info"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	radii := roi.DefaultRadii()
	ed := editor.DefaultConfig()
	mo := matcher.DefaultOptions()
	mc := matcher.DefaultConfig()
	return Config{
		LogLevel: infoLevel,
		Verbose:  false,
		Geometry: GeometryConfig{
			MinInnerRadius:     radii.MinInner,
			DefaultInnerRatio:  radii.InnerRatio,
			MinSize:            ed.MinSize,
			RotateHandleOffset: ed.RotateHandleOffset,
			HitTolerance:       ed.HitTolerance,
		},
		Matcher: MatcherConfig{
			Backend:          mc.Backend,
			Strategy:         mc.Strategy,
			ScoreThreshold:   mc.ScoreThreshold,
			RotRange:         mo.RotRange,
			RotStep:          mo.RotStep,
			ScaleMin:         mo.ScaleMin,
			ScaleMax:         mo.ScaleMax,
			ScaleStep:        mo.ScaleStep,
			MaxFeatures:      mo.MaxFeatures,
			FastThreshold:    mo.FastThreshold,
			MaxMatches:       mo.MaxMatches,
			MinMatches:       mo.MinMatches,
			RansacThreshold:  mo.RansacThreshold,
			RansacIterations: mo.RansacIterations,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
		Batch: BatchConfig{
			Workers:         4,
			Recursive:       false,
			ContinueOnError: true,
		},
		Export: ExportConfig{
			Dir:        "export",
			WriteMasks: true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := c.Geometry.validate(); err != nil {
		return err
	}
	if err := c.Matcher.validate(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

func (g GeometryConfig) validate() error {
	if g.MinInnerRadius < 0 {
		return fmt.Errorf("invalid geometry.min_inner_radius: %v (must not be negative)", g.MinInnerRadius)
	}
	if err := validateRatio(g.DefaultInnerRatio, "geometry.default_inner_ratio"); err != nil {
		return err
	}
	if g.MinSize <= 0 {
		return fmt.Errorf("invalid geometry.min_size: %v (must be positive)", g.MinSize)
	}
	return nil
}

func (m MatcherConfig) validate() error {
	validBackends := []string{matcher.BackendGo, matcher.BackendOpenCV, matcher.BackendAuto}
	if !slices.Contains(validBackends, m.Backend) {
		return fmt.Errorf("invalid matcher backend: %s (must be one of: %s)", m.Backend, strings.Join(validBackends, ", "))
	}
	if m.ScoreThreshold < 0 || m.ScoreThreshold > 100 {
		return fmt.Errorf("invalid matcher.score_threshold: %d (must be between 0 and 100)", m.ScoreThreshold)
	}
	if m.RotRange < 0 || m.RotRange > 180 {
		return fmt.Errorf("invalid matcher.rot_range: %v (must be between 0 and 180)", m.RotRange)
	}
	if m.RotStep <= 0 {
		return fmt.Errorf("invalid matcher.rot_step: %v (must be positive)", m.RotStep)
	}
	if m.ScaleMin <= 0 || m.ScaleMax < m.ScaleMin {
		return fmt.Errorf("invalid matcher scale range: %v..%v", m.ScaleMin, m.ScaleMax)
	}
	if m.MinMatches < 4 {
		return fmt.Errorf("invalid matcher.min_matches: %d (a homography needs at least 4)", m.MinMatches)
	}
	return nil
}

// ToRadii converts the geometry section to annulus rules.
func (c *Config) ToRadii() roi.Radii {
	return roi.NewRadii(c.Geometry.MinInnerRadius, c.Geometry.DefaultInnerRatio)
}

// ToEditorConfig converts the config to the editor's rules.
func (c *Config) ToEditorConfig() editor.Config {
	return editor.Config{
		MinSize:            c.Geometry.MinSize,
		Radii:              c.ToRadii(),
		RotateHandleOffset: c.Geometry.RotateHandleOffset,
		HitTolerance:       c.Geometry.HitTolerance,
	}
}

// ToMatcherConfig converts the config to the matcher configuration.
func (c *Config) ToMatcherConfig() matcher.Config {
	m := c.Matcher
	return matcher.Config{
		Backend:        m.Backend,
		Strategy:       m.Strategy,
		ScoreThreshold: m.ScoreThreshold,
		Options: matcher.Options{
			RotRange:         m.RotRange,
			RotStep:          m.RotStep,
			ScaleMin:         m.ScaleMin,
			ScaleMax:         m.ScaleMax,
			ScaleStep:        m.ScaleStep,
			MaxFeatures:      m.MaxFeatures,
			FastThreshold:    m.FastThreshold,
			MaxMatches:       m.MaxMatches,
			MinMatches:       m.MinMatches,
			RansacThreshold:  m.RansacThreshold,
			RansacIterations: m.RansacIterations,
		},
	}
}

func validateRatio(value float64, name string) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("invalid %s: %v (must be in (0, 1])", name, value)
	}
	return nil
}
