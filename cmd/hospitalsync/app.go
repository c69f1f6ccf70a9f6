package main

import (
	"context"
	"fmt"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
	infrahttp "hospitalsync/infrastructure/http"
	"hospitalsync/infrastructure/observability"
	"hospitalsync/infrastructure/runstore"
	"hospitalsync/infrastructure/storage"
	"hospitalsync/internal/metastore"
	"hospitalsync/internal/runstate"
	"hospitalsync/internal/usecase"
)

// Dependencies holds all initialized infrastructure components
type Dependencies struct {
	obs        ports.Observability
	storage    ports.Storage
	runState   ports.RunStateBackend
	httpClient *infrahttp.Client
	closers    []func() error
}

// Application holds the complete application stack
type Application struct {
	deps         *Dependencies
	orchestrator *usecase.Orchestrator
	logger       ports.Logger
	metrics      ports.Metrics
}

// buildApplication wires infrastructure and use cases from cfg
func buildApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	orchestrator, err := createOrchestrator(cfg, deps)
	if err != nil {
		deps.close()
		return nil, err
	}

	logger, metrics, err := deps.obs.ComponentsScoped("main")
	if err != nil {
		deps.close()
		return nil, err
	}

	return &Application{
		deps:         deps,
		orchestrator: orchestrator,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// initializeDependencies sets up observability, storage, run state and HTTP
func initializeDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	obs, err := observability.CreateObservability(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	deps := &Dependencies{obs: obs}

	deps.storage, err = initializeStorage(ctx, cfg, obs)
	if err != nil {
		return nil, err
	}

	backend, closeBackend, err := runstore.Create(ctx, cfg, obs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run state: %w", err)
	}
	deps.runState = backend
	deps.closers = append(deps.closers, closeBackend)

	httpLogger, httpMetrics, err := obs.ComponentsScoped("client.http")
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.httpClient = infrahttp.NewClient(cfg.HTTP, cfg.Retry, httpLogger, httpMetrics)

	return deps, nil
}

// initializeStorage sets up the output storage adapter
func initializeStorage(ctx context.Context, cfg *config.Config, obs ports.Observability) (ports.Storage, error) {
	logger, metrics, err := obs.ComponentsScoped("storage." + cfg.Adapters.Storage)
	if err != nil {
		return nil, err
	}

	s, err := storage.NewFactory(logger, metrics).Create(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		metrics.IncrementCounter("init.failures", nil)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	metrics.IncrementCounter("init.success", nil)
	return s, nil
}

// createOrchestrator builds the use case layer
func createOrchestrator(cfg *config.Config, deps *Dependencies) (*usecase.Orchestrator, error) {
	metaLogger, metaMetrics, err := deps.obs.ComponentsScoped("metastore")
	if err != nil {
		return nil, err
	}
	lister := metastore.NewClient(deps.httpClient, cfg.Metastore.URL, cfg.Metastore.Theme, cfg.Metastore.MediaType, metaLogger, metaMetrics)

	workerLogger, workerMetrics, err := deps.obs.ComponentsScoped("worker")
	if err != nil {
		return nil, err
	}
	// the filesystem adapter is rooted at the output directory, S3 falls back
	// to its configured bucket; both take an empty bucket
	worker := usecase.NewFetchTransformWorker(deps.httpClient, deps.storage, usecase.WorkerOptions{
		MaxBytes:     cfg.Pipeline.MaxDownloadBytes,
		Delimiter:    cfg.Pipeline.Delimiter,
		Disambiguate: cfg.Pipeline.Disambiguate,
	}, workerLogger, workerMetrics)

	stateLogger, stateMetrics, err := deps.obs.ComponentsScoped("runstate")
	if err != nil {
		return nil, err
	}
	store := runstate.New(deps.runState, stateLogger, stateMetrics)

	runLogger, runMetrics, err := deps.obs.ComponentsScoped("orchestrator")
	if err != nil {
		return nil, err
	}

	var reports *usecase.ReportWriter
	if cfg.State.ReportDir != "" {
		reports = usecase.NewReportWriter(cfg.State.ReportDir, runLogger)
	}

	return usecase.NewOrchestrator(lister, worker, store, reports, usecase.OrchestratorOptions{
		Workers: cfg.Pipeline.Workers,
		Theme:   cfg.Metastore.Theme,
		DryRun:  cfg.Pipeline.DryRun,
	}, runLogger, runMetrics), nil
}

// Flush delivers metrics to the configured sink
func (a *Application) Flush() {
	if err := a.deps.obs.Flush(); err != nil {
		a.logger.Warn("Failed to push metrics", "error", err)
	}
}

// Close releases connections opened by the dependencies
func (a *Application) Close() {
	a.deps.close()
}

func (d *Dependencies) close() {
	for _, c := range d.closers {
		_ = c()
	}
}
