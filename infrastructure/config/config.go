// Package config builds the job configuration from the environment, optional
// .env files, and command-line overrides.
package config

import (
	"fmt"
	"path/filepath"
)

// Overrides are command-line values that win over the environment.
// Zero values leave the environment setting in place.
type Overrides struct {
	OutputDir string
	StatePath string
	Theme     string
	Workers   int
	DryRun    bool
}

// Load loads configuration from .env files and environment variables,
// applies overrides, fills defaults and validates the result.
func Load(o Overrides) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Apply(o)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Apply copies the non-zero overrides into the configuration.
func (c *Config) Apply(o Overrides) {
	if o.OutputDir != "" {
		c.Storage.BucketOrPath = o.OutputDir
	}
	if o.StatePath != "" {
		c.State.Path = o.StatePath
		if c.State.ReportDir == "" || c.State.ReportDir == filepath.Join("_checkpoints", "runs") {
			c.State.ReportDir = filepath.Join(filepath.Dir(o.StatePath), "runs")
		}
	}
	if o.Theme != "" {
		c.Metastore.Theme = o.Theme
	}
	if o.Workers > 0 {
		c.Pipeline.Workers = o.Workers
	}
	if o.DryRun {
		c.Pipeline.DryRun = true
	}
}
