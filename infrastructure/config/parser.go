package config

import (
	"hospitalsync/utils"
)

// parse reads configuration from environment variables
func parse() (*Config, error) {
	cfg := &Config{
		// Core
		Environment: utils.GetEnv("ENVIRONMENT", "local"),
		ServiceName: utils.GetEnv("SERVICE_NAME", "hospitalsync"),
		LogLevel:    utils.GetEnv("LOG_LEVEL", "info"),
		LogFormat:   utils.GetEnv("LOG_FORMAT", "text"),
		Version:     utils.GetEnv("SERVICE_VERSION", "1.0.0"),

		// Adapter selection
		Adapters: AdapterConfig{
			Storage:  utils.GetEnv("ADAPTER_STORAGE", ""),
			RunState: utils.GetEnv("ADAPTER_RUN_STATE", ""),
			Metrics:  utils.GetEnv("ADAPTER_METRICS", ""),
		},

		Metastore: MetastoreConfig{
			URL:       utils.GetEnv("METASTORE_URL", DefaultMetastoreURL),
			Theme:     utils.GetEnv("METASTORE_THEME", "Hospitals"),
			MediaType: utils.GetEnv("METASTORE_MEDIA_TYPE", "text/csv"),
		},

		Pipeline: PipelineConfig{
			Workers:          utils.GetEnvInt("WORKERS", 8),
			MaxDownloadBytes: utils.GetEnvInt64("DOWNLOAD_MAX_BYTES", 1<<30),
			Delimiter:        utils.GetEnvRune("CSV_DELIMITER", ','),
			Disambiguate:     utils.GetEnvBool("HEADER_DISAMBIGUATE", true),
			DryRun:           utils.GetEnvBool("DRY_RUN", false),
		},

		// HTTP Configuration
		HTTP: HTTPConfig{
			Timeout:    utils.GetEnvDuration("HTTP_TIMEOUT", "120s"),
			MaxRetries: utils.GetEnvInt("HTTP_MAX_RETRIES", 3),
			UserAgent:  utils.GetEnv("HTTP_USER_AGENT", "hospitalsync/1.0"),
		},

		Retry: RetryConfig{
			InitialBackoff:    utils.GetEnvDuration("RETRY_INITIAL_BACKOFF", "500ms"),
			MaxBackoff:        utils.GetEnvDuration("RETRY_MAX_BACKOFF", "10s"),
			BackoffMultiplier: utils.GetEnvFloat64("RETRY_BACKOFF_MULTIPLIER", 2.0),
		},

		// Storage Configuration
		Storage: StorageConfig{
			BucketOrPath: utils.GetEnv("OUTPUT_DIR", utils.GetEnv("STORAGE_BUCKET_OR_PATH", "")),
			Prefix:       utils.GetEnv("STORAGE_PREFIX", ""),
			Timeout:      utils.GetEnvDuration("STORAGE_TIMEOUT", "30s"),
			S3: S3Config{
				Region:          utils.GetEnv("AWS_REGION", "us-east-1"),
				AccessKeyID:     utils.GetEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: utils.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        utils.GetEnv("S3_ENDPOINT", ""),
			},
		},

		State: StateConfig{
			Path:      utils.GetEnv("STATE_PATH", "_checkpoints/run_state.json"),
			ReportDir: utils.GetEnv("REPORT_DIR", ""),
		},

		// Database Configuration
		Database: DatabaseConfig{
			Host:     utils.GetEnv("DB_HOST", "localhost"),
			Port:     utils.GetEnvInt("DB_PORT", 5432),
			Database: utils.GetEnv("DB_NAME", "hospitalsync"),
			Username: utils.GetEnv("DB_USER", "postgres"),
			Password: utils.GetEnv("DB_PASSWORD", "postgres"),
			SSLMode:  utils.GetEnv("DB_SSL_MODE", "disable"),
			Table:    utils.GetEnv("DB_RUN_STATE_TABLE", "dataset_run_records"),

			// Connection pool
			MaxOpenConns: utils.GetEnvInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns: utils.GetEnvInt("DB_MAX_IDLE_CONNS", 2),
		},

		Observability: ObservabilityConfig{
			PushgatewayURL: utils.GetEnv("METRICS_PUSHGATEWAY_URL", ""),
			JobName:        utils.GetEnv("METRICS_JOB_NAME", "hospitalsync"),
		},
	}

	return cfg, nil
}
