package config

import (
	"path/filepath"
	"time"
)

// DefaultMetastoreURL is the CMS provider-data dataset listing.
const DefaultMetastoreURL = "https://data.cms.gov/provider-data/api/1/metastore/schemas/dataset/items"

// DefaultConfig returns a complete configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "local",
		ServiceName: "hospitalsync",
		LogLevel:    "info",
		LogFormat:   "text",
		Version:     "1.0.0",

		Adapters: AdapterConfig{
			Storage:  "filesystem",
			RunState: "file",
			Metrics:  "stdout",
		},
		Metastore: MetastoreConfig{
			URL:       DefaultMetastoreURL,
			Theme:     "Hospitals",
			MediaType: "text/csv",
		},
		Pipeline: PipelineConfig{
			Workers:          8,
			MaxDownloadBytes: 1 << 30,
			Delimiter:        ',',
			Disambiguate:     true,
		},
		HTTP: HTTPConfig{
			Timeout:    120 * time.Second,
			MaxRetries: 3,
			UserAgent:  "hospitalsync/1.0",
		},
		Retry: RetryConfig{
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Storage: StorageConfig{
			BucketOrPath: "cleaned_files",
			Timeout:      30 * time.Second,
			S3:           S3Config{Region: "us-east-1"},
		},
		State: StateConfig{
			Path:      "_checkpoints/run_state.json",
			ReportDir: filepath.Join("_checkpoints", "runs"),
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "hospitalsync",
			Username:     "postgres",
			Password:     "postgres",
			SSLMode:      "disable",
			Table:        "dataset_run_records",
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		Observability: ObservabilityConfig{
			JobName: "hospitalsync",
		},
	}
}

// applyDefaults fills adapter selection and paths left empty by the environment
func applyDefaults(cfg *Config) {
	if cfg.IsProduction() {
		if cfg.Adapters.Storage == "" {
			cfg.Adapters.Storage = "s3"
		}
		if cfg.Adapters.RunState == "" {
			cfg.Adapters.RunState = "postgres"
		}
		if cfg.Adapters.Metrics == "" {
			cfg.Adapters.Metrics = "prometheus"
		}
		if cfg.LogFormat == "text" {
			cfg.LogFormat = "json"
		}
	}

	if cfg.Adapters.Storage == "" {
		cfg.Adapters.Storage = "filesystem"
	}
	if cfg.Adapters.RunState == "" {
		cfg.Adapters.RunState = "file"
	}
	if cfg.Adapters.Metrics == "" {
		cfg.Adapters.Metrics = "stdout"
	}

	if cfg.Storage.BucketOrPath == "" {
		if cfg.Adapters.Storage == "s3" {
			cfg.Storage.BucketOrPath = cfg.ServiceName + "-cleaned-files"
		} else {
			cfg.Storage.BucketOrPath = "cleaned_files"
		}
	}

	if cfg.State.ReportDir == "" {
		cfg.State.ReportDir = filepath.Join(filepath.Dir(cfg.State.Path), "runs")
	}
}
