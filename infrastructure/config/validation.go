package config

import (
	"fmt"
	"strings"
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	// Core validations
	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT: %s", c.LogFormat))
	}

	// Validate adapters
	if err := c.Adapters.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Metastore.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Pipeline.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.HTTP.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate retry config
	if err := c.Retry.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate storage
	if err := c.Storage.Validate(c.Adapters); err != nil {
		errors = append(errors, err.Error())
	}

	switch c.Adapters.RunState {
	case "file":
		if c.State.Path == "" {
			errors = append(errors, "STATE_PATH is required for file run state")
		}
	case "postgres":
		if err := c.Database.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates adapter configuration
func (a *AdapterConfig) Validate() error {
	validStorage := map[string]bool{"filesystem": true, "s3": true}
	validRunState := map[string]bool{"file": true, "postgres": true}
	validMetrics := map[string]bool{"stdout": true, "prometheus": true}

	if !validStorage[a.Storage] {
		return fmt.Errorf("invalid storage adapter: %s", a.Storage)
	}
	if !validRunState[a.RunState] {
		return fmt.Errorf("invalid run state adapter: %s", a.RunState)
	}
	if !validMetrics[a.Metrics] {
		return fmt.Errorf("invalid metrics adapter: %s", a.Metrics)
	}

	return nil
}

// Validate validates metastore configuration
func (m *MetastoreConfig) Validate() error {
	if m.URL == "" {
		return fmt.Errorf("METASTORE_URL is required")
	}
	if !strings.HasPrefix(m.URL, "http://") && !strings.HasPrefix(m.URL, "https://") {
		return fmt.Errorf("METASTORE_URL must be an http(s) URL: %s", m.URL)
	}
	if m.Theme == "" {
		return fmt.Errorf("METASTORE_THEME is required")
	}
	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if p.MaxDownloadBytes <= 0 {
		return fmt.Errorf("DOWNLOAD_MAX_BYTES must be positive")
	}
	if p.Delimiter == '"' || p.Delimiter == '\r' || p.Delimiter == '\n' || p.Delimiter == 0 {
		return fmt.Errorf("invalid CSV_DELIMITER: %q", p.Delimiter)
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if h.MaxRetries < 0 {
		return fmt.Errorf("HTTP_MAX_RETRIES cannot be negative")
	}
	return nil
}

// Validate validates retry configuration
func (r *RetryConfig) Validate() error {
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("RETRY_INITIAL_BACKOFF must be positive")
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("RETRY_MAX_BACKOFF must be >= RETRY_INITIAL_BACKOFF")
	}
	if r.BackoffMultiplier < 1 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be >= 1")
	}
	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate(adapters AdapterConfig) error {
	if s.BucketOrPath == "" {
		return fmt.Errorf("OUTPUT_DIR or STORAGE_BUCKET_OR_PATH is required")
	}

	if adapters.Storage == "s3" && s.S3.Region == "" {
		return fmt.Errorf("AWS_REGION is required for S3 storage")
	}

	return nil
}

// Validate validates database configuration
func (d *DatabaseConfig) Validate() error {
	var errors []string

	if d.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if d.Database == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if d.Username == "" {
		errors = append(errors, "DB_USER is required")
	}
	if d.Table == "" {
		errors = append(errors, "DB_RUN_STATE_TABLE is required")
	}

	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[d.SSLMode] {
		errors = append(errors, fmt.Sprintf("invalid DB_SSL_MODE: %s", d.SSLMode))
	}

	if d.MaxIdleConns > d.MaxOpenConns {
		errors = append(errors, "DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if len(errors) > 0 {
		return fmt.Errorf("database config errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// DSN returns the lib/pq connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
}
