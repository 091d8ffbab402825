// Package config provides configuration loading and validation for the
// lifecycle engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Aliases  AliasConfig    `yaml:"aliases,omitempty"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis,omitempty"`
	Client   ClientConfig   `yaml:"client"`
}

// ClientConfig identifies the portfolio owner.
type ClientConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment,omitempty"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig tunes pattern analysis and scoring windows.
type AnalysisConfig struct {
	RepeatPatternThreshold int `yaml:"repeat_pattern_threshold,omitempty"`
	RecentWindowDays       int `yaml:"recent_window_days,omitempty"`
	HighVolumeThreshold    int `yaml:"high_volume_threshold,omitempty"`
	MaxWorkers             int `yaml:"max_workers,omitempty"`
}

// AliasConfig holds the manually curated alias tables. Application aliases
// map a raw configuration-item string to a known application name; identity
// aliases map a directory login to alternate names seen in role assignments
// (maiden names, legacy accounts).
type AliasConfig struct {
	Applications map[string]string   `yaml:"applications,omitempty"`
	Identities   map[string][]string `yaml:"identities,omitempty"`
}

// Defaults applied when the config file omits analysis settings.
const (
	DefaultRepeatPatternThreshold = 3
	DefaultRecentWindowDays       = 90
	DefaultHighVolumeThreshold    = 10
	DefaultMaxWorkers             = 4
)

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (config file)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied, for callers
// that run without a config file.
func Default() *Config {
	c := &Config{
		Client:   ClientConfig{Name: "portfolio"},
		Database: DatabaseConfig{Path: "data/lifecycle.db"},
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Analysis.RepeatPatternThreshold == 0 {
		c.Analysis.RepeatPatternThreshold = DefaultRepeatPatternThreshold
	}
	if c.Analysis.RecentWindowDays == 0 {
		c.Analysis.RecentWindowDays = DefaultRecentWindowDays
	}
	if c.Analysis.HighVolumeThreshold == 0 {
		c.Analysis.HighVolumeThreshold = DefaultHighVolumeThreshold
	}
	if c.Analysis.MaxWorkers == 0 {
		c.Analysis.MaxWorkers = DefaultMaxWorkers
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Client.Name == "" {
		return fmt.Errorf("client.name is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Analysis.RepeatPatternThreshold < 2 {
		return fmt.Errorf("analysis.repeat_pattern_threshold must be at least 2, got %d", c.Analysis.RepeatPatternThreshold)
	}

	if c.Analysis.RecentWindowDays < 1 {
		return fmt.Errorf("analysis.recent_window_days must be positive, got %d", c.Analysis.RecentWindowDays)
	}

	if c.Analysis.HighVolumeThreshold < 1 {
		return fmt.Errorf("analysis.high_volume_threshold must be positive, got %d", c.Analysis.HighVolumeThreshold)
	}

	if c.Analysis.MaxWorkers < 1 {
		return fmt.Errorf("analysis.max_workers must be positive, got %d", c.Analysis.MaxWorkers)
	}

	return nil
}
