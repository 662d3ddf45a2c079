//nolint:lll
package config

// Config represents the complete configuration for roikit.
// It covers every command (crop, mask, match, batch, export, serve) and
// supports loading from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// ROI geometry rules shared by the editor and the crop extractor
	Geometry GeometryConfig `mapstructure:"geometry" yaml:"geometry" json:"geometry"`

	// Local matching
	Matcher MatcherConfig `mapstructure:"matcher" yaml:"matcher" json:"matcher"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch matching configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Dataset export configuration
	Export ExportConfig `mapstructure:"export" yaml:"export" json:"export"`
}

// GeometryConfig contains ROI editing and annulus rules.
type GeometryConfig struct {
	MinInnerRadius     float64 `mapstructure:"min_inner_radius" yaml:"min_inner_radius" json:"min_inner_radius"`
	DefaultInnerRatio  float64 `mapstructure:"default_inner_ratio" yaml:"default_inner_ratio" json:"default_inner_ratio"`
	MinSize            float64 `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	RotateHandleOffset float64 `mapstructure:"rotate_handle_offset" yaml:"rotate_handle_offset" json:"rotate_handle_offset"`
	HitTolerance       float64 `mapstructure:"hit_tolerance" yaml:"hit_tolerance" json:"hit_tolerance"`
}

// MatcherConfig contains local matching settings.
type MatcherConfig struct {
	Backend          string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	Strategy         string  `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	ScoreThreshold   int     `mapstructure:"score_threshold" yaml:"score_threshold" json:"score_threshold"`
	RotRange         float64 `mapstructure:"rot_range" yaml:"rot_range" json:"rot_range"`
	RotStep          float64 `mapstructure:"rot_step" yaml:"rot_step" json:"rot_step"`
	ScaleMin         float64 `mapstructure:"scale_min" yaml:"scale_min" json:"scale_min"`
	ScaleMax         float64 `mapstructure:"scale_max" yaml:"scale_max" json:"scale_max"`
	ScaleStep        float64 `mapstructure:"scale_step" yaml:"scale_step" json:"scale_step"`
	MaxFeatures      int     `mapstructure:"max_features" yaml:"max_features" json:"max_features"`
	FastThreshold    int     `mapstructure:"fast_threshold" yaml:"fast_threshold" json:"fast_threshold"`
	MaxMatches       int     `mapstructure:"max_matches" yaml:"max_matches" json:"max_matches"`
	MinMatches       int     `mapstructure:"min_matches" yaml:"min_matches" json:"min_matches"`
	RansacThreshold  float64 `mapstructure:"ransac_threshold" yaml:"ransac_threshold" json:"ransac_threshold"`
	RansacIterations int     `mapstructure:"ransac_iterations" yaml:"ransac_iterations" json:"ransac_iterations"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Per-client rate limiting; zero limits are disabled
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch matching settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// ExportConfig contains dataset export settings.
type ExportConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir" json:"dir"`
	WriteMasks bool   `mapstructure:"write_masks" yaml:"write_masks" json:"write_masks"`
	Overlay    bool   `mapstructure:"overlay" yaml:"overlay" json:"overlay"`
}
