// Package config loads and persists tsa workspace configuration.
package config

import (
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"tsa/internal/errors"
	"tsa/internal/paths"
)

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// Config represents the complete tsa workspace configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Defaults   DefaultsConfig   `json:"defaults" mapstructure:"defaults"`
	MonteCarlo MonteCarloConfig `json:"monteCarlo" mapstructure:"monteCarlo"`
	Export     ExportConfig     `json:"export" mapstructure:"export"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// DefaultsConfig contains defaults applied to newly created analyses.
type DefaultsConfig struct {
	Methods []string `json:"methods" mapstructure:"methods"`
}

// MonteCarloConfig contains simulation defaults used when an analysis
// does not pin its own settings.
type MonteCarloConfig struct {
	Iterations    int     `json:"iterations" mapstructure:"iterations"`
	Confidence    float64 `json:"confidence" mapstructure:"confidence"`
	HistogramBins int     `json:"histogramBins" mapstructure:"histogramBins"`
}

// ExportConfig contains result export settings.
type ExportConfig struct {
	Compress       bool `json:"compress" mapstructure:"compress"`
	FloatPrecision int  `json:"floatPrecision" mapstructure:"floatPrecision"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Defaults: DefaultsConfig{
			Methods: []string{"worst_case", "rss", "monte_carlo"},
		},
		MonteCarlo: MonteCarloConfig{
			Iterations:    10000,
			Confidence:    0.95,
			HistogramBins: 20,
		},
		Export: ExportConfig{
			Compress:       true,
			FloatPrecision: 6,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// GlobalDefaults are user-level overrides read from ~/.tsa/defaults.toml.
// Zero fields leave the built-in value in place.
type GlobalDefaults struct {
	MonteCarlo struct {
		Iterations    int     `toml:"iterations"`
		Confidence    float64 `toml:"confidence"`
		HistogramBins int     `toml:"histogram_bins"`
	} `toml:"montecarlo"`
	Export struct {
		FloatPrecision int `toml:"float_precision"`
	} `toml:"export"`
	Logging struct {
		Format string `toml:"format"`
		Level  string `toml:"level"`
	} `toml:"logging"`
}

// ReadGlobalDefaults parses the user-level defaults file.
// A missing file is not an error and returns nil.
func ReadGlobalDefaults() (*GlobalDefaults, error) {
	path, err := paths.GetGlobalDefaultsPath()
	if err != nil {
		return nil, nil
	}
	var g GlobalDefaults
	if _, err := toml.DecodeFile(path, &g); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewTsaError(errors.ConfigInvalid, "failed to parse global defaults", err)
	}
	return &g, nil
}

// applyGlobal overlays non-zero global defaults onto the config.
func (c *Config) applyGlobal(g *GlobalDefaults) {
	if g == nil {
		return
	}
	if g.MonteCarlo.Iterations > 0 {
		c.MonteCarlo.Iterations = g.MonteCarlo.Iterations
	}
	if g.MonteCarlo.Confidence > 0 {
		c.MonteCarlo.Confidence = g.MonteCarlo.Confidence
	}
	if g.MonteCarlo.HistogramBins > 0 {
		c.MonteCarlo.HistogramBins = g.MonteCarlo.HistogramBins
	}
	if g.Export.FloatPrecision > 0 {
		c.Export.FloatPrecision = g.Export.FloatPrecision
	}
	if g.Logging.Format != "" {
		c.Logging.Format = g.Logging.Format
	}
	if g.Logging.Level != "" {
		c.Logging.Level = g.Logging.Level
	}
}

// LoadConfig loads configuration for a workspace root.
// Precedence: .tsa/config.json > ~/.tsa/defaults.toml > built-ins.
func LoadConfig(root string) (*Config, error) {
	base := DefaultConfig()
	global, err := ReadGlobalDefaults()
	if err != nil {
		return nil, err
	}
	base.applyGlobal(global)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.GetDataDir(root))

	v.SetDefault("version", base.Version)
	v.SetDefault("defaults.methods", base.Defaults.Methods)
	v.SetDefault("monteCarlo.iterations", base.MonteCarlo.Iterations)
	v.SetDefault("monteCarlo.confidence", base.MonteCarlo.Confidence)
	v.SetDefault("monteCarlo.histogramBins", base.MonteCarlo.HistogramBins)
	v.SetDefault("export.compress", base.Export.Compress)
	v.SetDefault("export.floatPrecision", base.Export.FloatPrecision)
	v.SetDefault("logging.format", base.Logging.Format)
	v.SetDefault("logging.level", base.Logging.Level)
	v.SetDefault("logging.maxSize", base.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", base.Logging.MaxBackups)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return base, nil
		}
		return nil, errors.NewTsaError(errors.ConfigInvalid, "failed to read workspace config", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewTsaError(errors.ConfigInvalid, "failed to decode workspace config", err)
	}

	return &cfg, nil
}

// Save writes the configuration to .tsa/config.json.
func (c *Config) Save(root string) error {
	if _, err := paths.EnsureDataDir(root); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(paths.GetConfigPath(root), data, 0644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return errors.NewTsaError(errors.ConfigInvalid, "unsupported config version", nil).
			WithDetails(map[string]int{"version": c.Version})
	}
	if c.MonteCarlo.Iterations <= 0 {
		return errors.NewTsaError(errors.ConfigInvalid, "monteCarlo.iterations must be positive", nil)
	}
	if c.MonteCarlo.Confidence <= 0 || c.MonteCarlo.Confidence >= 1 {
		return errors.NewTsaError(errors.ConfigInvalid, "monteCarlo.confidence must be in (0, 1)", nil)
	}
	if c.MonteCarlo.HistogramBins < 0 {
		return errors.NewTsaError(errors.ConfigInvalid, "monteCarlo.histogramBins must not be negative", nil)
	}
	if c.Export.FloatPrecision < 0 || c.Export.FloatPrecision > 12 {
		return errors.NewTsaError(errors.ConfigInvalid, "export.floatPrecision must be in [0, 12]", nil)
	}
	return nil
}
