// Package config loads the wall-texture server settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/wall-texture-mcp/internal/compose"
	"github.com/ironsheep/wall-texture-mcp/internal/detection"
	"github.com/ironsheep/wall-texture-mcp/internal/pipeline"
)

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "WALL_MCP_LOG_LEVEL"

// DefaultMaxFileSize is the largest image file accepted, in bytes.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Config is the complete server configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Detection   detection.Params  `yaml:"detection"`
	Compositing CompositingConfig `yaml:"compositing"`
	Progress    ProgressConfig    `yaml:"progress"`
	Limits      LimitsConfig      `yaml:"limits"`
	Output      OutputConfig      `yaml:"output"`
}

// CompositingConfig tunes the blend passes and the pattern tile.
type CompositingConfig struct {
	DefaultOpacity  float64 `yaml:"default_opacity"`
	LightingOpacity float64 `yaml:"lighting_opacity"`
	FallbackOpacity float64 `yaml:"fallback_opacity"`
	MaxTileSize     int     `yaml:"max_tile_size"`
	FallbackBand    float64 `yaml:"fallback_band"`
}

// ProgressConfig controls progress playback during a run.
type ProgressConfig struct {
	StepsPerStage int           `yaml:"steps_per_stage"`
	StepDelay     time.Duration `yaml:"step_delay"`
}

// LimitsConfig bounds the inputs the server accepts.
type LimitsConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

// OutputConfig selects the default encoding of rendered images.
type OutputConfig struct {
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Detection: detection.DefaultParams(),
		Compositing: CompositingConfig{
			DefaultOpacity:  compose.DefaultOpacity,
			LightingOpacity: compose.DefaultLightingOpacity,
			FallbackOpacity: compose.DefaultFallbackOpacity,
			MaxTileSize:     compose.DefaultMaxTileSize,
			FallbackBand:    compose.DefaultFallbackBand,
		},
		Progress: ProgressConfig{
			StepsPerStage: pipeline.DefaultStepsPerStage,
		},
		Limits: LimitsConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
		Output: OutputConfig{
			Format:  "png",
			Quality: pipeline.DefaultOutputQuality,
		},
	}
}

// Load reads a YAML file over the defaults, so a file only needs the keys it
// changes. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(LogLevelEnv); v != "" {
		c.LogLevel = v
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	d := c.Detection
	switch {
	case d.BlockSize <= 0:
		return fmt.Errorf("detection.block_size must be positive")
	case d.SeedUniformity <= 0 || d.SeedUniformity > 1:
		return fmt.Errorf("detection.seed_uniformity must be in (0,1]")
	case d.MinLuminance >= d.MaxLuminance:
		return fmt.Errorf("detection.min_luminance must be below max_luminance")
	case d.GrowthRatio <= 0 || d.GrowthRatio > 1:
		return fmt.Errorf("detection.growth_ratio must be in (0,1]")
	case d.MinWallSize <= 0 || d.MinFloodSize <= 0:
		return fmt.Errorf("detection minimum region sizes must be positive")
	case d.FloodGrid <= 0:
		return fmt.Errorf("detection.flood_grid must be positive")
	case d.FloodTolerance <= 0:
		return fmt.Errorf("detection.flood_tolerance must be positive")
	case d.NearZeroArea < 0 || d.NearZeroArea >= 1:
		return fmt.Errorf("detection.near_zero_area must be in [0,1)")
	}

	cp := c.Compositing
	opacities := []struct {
		name  string
		value float64
	}{
		{"default_opacity", cp.DefaultOpacity},
		{"lighting_opacity", cp.LightingOpacity},
		{"fallback_opacity", cp.FallbackOpacity},
	}
	for _, o := range opacities {
		if o.value < 0 || o.value > 1 {
			return fmt.Errorf("compositing.%s must be in [0,1], got %g", o.name, o.value)
		}
	}
	if cp.MaxTileSize <= 0 {
		return fmt.Errorf("compositing.max_tile_size must be positive")
	}
	if cp.FallbackBand <= 0 || cp.FallbackBand > 1 {
		return fmt.Errorf("compositing.fallback_band must be in (0,1]")
	}

	if c.Progress.StepsPerStage <= 0 {
		return fmt.Errorf("progress.steps_per_stage must be positive")
	}
	if c.Progress.StepDelay < 0 {
		return fmt.Errorf("progress.step_delay must not be negative")
	}
	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("limits.max_file_size must be positive")
	}

	switch c.Output.Format {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("output.format must be png or jpeg, got %q", c.Output.Format)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be in [1,100], got %d", c.Output.Quality)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// PipelineConfig converts the settings into a pipeline.Config.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Detection:       c.Detection,
		MaxTileSize:     c.Compositing.MaxTileSize,
		FallbackBand:    c.Compositing.FallbackBand,
		LightingOpacity: c.Compositing.LightingOpacity,
		FallbackOpacity: c.Compositing.FallbackOpacity,
		StepsPerStage:   c.Progress.StepsPerStage,
		StepDelay:       c.Progress.StepDelay,
	}
}

// Options returns the default processing options with the configured
// opacity and output quality.
func (c *Config) Options() pipeline.Options {
	o := pipeline.DefaultOptions()
	o.TextureOpacity = c.Compositing.DefaultOpacity
	o.OutputQuality = c.Output.Quality
	return o
}
