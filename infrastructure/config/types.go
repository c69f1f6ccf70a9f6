package config

import (
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string
	LogFormat   string // "text" or "json"
	Version     string

	// Component configurations
	Adapters      AdapterConfig
	Metastore     MetastoreConfig
	Pipeline      PipelineConfig
	HTTP          HTTPConfig
	Retry         RetryConfig
	Storage       StorageConfig
	State         StateConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
}

// AdapterConfig specifies which implementations to use
type AdapterConfig struct {
	Storage  string // "filesystem", "s3"
	RunState string // "file", "postgres"
	Metrics  string // "stdout", "prometheus"
}

// MetastoreConfig describes the upstream catalog
type MetastoreConfig struct {
	URL       string
	Theme     string
	MediaType string
}

// PipelineConfig holds fetch-and-transform settings
type PipelineConfig struct {
	Workers          int
	MaxDownloadBytes int64
	Delimiter        rune
	Disambiguate     bool
	DryRun           bool
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// RetryConfig holds the backoff policy used by the HTTP client
type RetryConfig struct {
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// StorageConfig holds output storage configuration.
// BucketOrPath is the output directory for "filesystem" and the bucket for "s3".
type StorageConfig struct {
	BucketOrPath string
	Prefix       string
	Timeout      time.Duration
	S3           S3Config
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // LocalStack / MinIO
}

// StateConfig locates the run metadata and the per-run reports
type StateConfig struct {
	Path      string
	ReportDir string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	MaxOpenConns int
	MaxIdleConns int
	SSLMode      string
	Table        string
}

// ObservabilityConfig holds metrics sink configuration
type ObservabilityConfig struct {
	PushgatewayURL string
	JobName        string
}

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
