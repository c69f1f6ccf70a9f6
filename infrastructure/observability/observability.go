// Package observability wires the configured logger and metrics adapters
// and hands out component-scoped views of them.
package observability

import (
	"fmt"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
	promAdapter "hospitalsync/infrastructure/observability/adapters/prometheus"
	"hospitalsync/infrastructure/observability/adapters/stdout"
)

type observability struct {
	config  *config.Config
	logger  ports.Logger
	metrics ports.Metrics
	flush   func() error
}

// CreateObservability builds logger and metrics from cfg.Adapters.Metrics
func CreateObservability(cfg *config.Config) (ports.Observability, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	logger := stdout.NewLogger(
		stdout.WithLevel(stdout.ParseLevel(cfg.LogLevel)),
		stdout.WithJSON(cfg.LogFormat == "json"),
	)

	obs := &observability{
		config: cfg,
		logger: logger,
		flush:  func() error { return nil },
	}

	switch cfg.Adapters.Metrics {
	case "stdout":
		obs.metrics = stdout.NewMetrics(stdout.WithJSONMetrics(cfg.LogFormat == "json"))
	case "prometheus":
		m := promAdapter.New(cfg.ServiceName)
		obs.metrics = m
		if url := cfg.Observability.PushgatewayURL; url != "" {
			job := cfg.Observability.JobName
			obs.flush = func() error { return m.Push(url, job) }
		}
	default:
		return nil, fmt.Errorf("unsupported metrics adapter: %s", cfg.Adapters.Metrics)
	}

	return obs, nil
}

// Components returns logger and metrics without any scoping
func (obs *observability) Components() (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, fmt.Errorf("observability not initialized")
	}
	return obs.logger, obs.metrics, nil
}

// ComponentsScoped returns logger and metrics scoped to a specific component
func (obs *observability) ComponentsScoped(component string) (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, fmt.Errorf("observability not initialized")
	}

	logger := obs.logger.WithFields(map[string]interface{}{
		"service":   obs.config.ServiceName,
		"version":   obs.config.Version,
		"env":       obs.config.Environment,
		"component": component,
	})
	metrics := obs.metrics.WithTags(map[string]string{
		"service":   obs.config.ServiceName,
		"env":       obs.config.Environment,
		"component": component,
	})

	return logger, metrics, nil
}

// Flush pushes buffered metrics when a Pushgateway is configured
func (obs *observability) Flush() error {
	return obs.flush()
}
