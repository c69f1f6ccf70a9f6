// Package usecase holds the run pipeline: the fetch-and-transform worker,
// the orchestrator that drives one run, and the run report writer.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
	"hospitalsync/internal/metastore"
	"hospitalsync/internal/runstate"
)

// DatasetLister returns the current theme-filtered catalog
type DatasetLister interface {
	List(ctx context.Context) (*metastore.Listing, error)
}

// DatasetProcessor handles one dataset; *FetchTransformWorker implements it
type DatasetProcessor interface {
	Process(ctx context.Context, d domain.DatasetDescriptor) Result
}

// OrchestratorOptions configure a run
type OrchestratorOptions struct {
	Workers int
	Theme   string
	DryRun  bool
}

// Orchestrator runs one pass: list, select changed, fetch in parallel,
// record successes, persist once.
type Orchestrator struct {
	lister    DatasetLister
	processor DatasetProcessor
	store     *runstate.Store
	reports   *ReportWriter
	opts      OrchestratorOptions
	logger    ports.Logger
	metrics   ports.Metrics
	now       func() time.Time
	newRunID  func() string
}

// NewOrchestrator wires a run. reports may be nil to skip run reports.
func NewOrchestrator(
	lister DatasetLister,
	processor DatasetProcessor,
	store *runstate.Store,
	reports *ReportWriter,
	opts OrchestratorOptions,
	logger ports.Logger,
	metrics ports.Metrics,
) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		lister:    lister,
		processor: processor,
		store:     store,
		reports:   reports,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// RunOnce executes one run. The returned error is fatal (metadata load
// cancelled, metastore unavailable, persist failed); per-dataset failures are
// only listed in the report. The report is returned even with a fatal error.
func (o *Orchestrator) RunOnce(ctx context.Context) (*domain.JobReport, error) {
	report := &domain.JobReport{
		RunID:     o.newRunID(),
		StartedAt: o.now().UTC(),
		Theme:     o.opts.Theme,
		Selected:  []string{},
		Succeeded: []string{},
		Failed:    []domain.Failure{},
	}
	logger := o.logger.WithFields(map[string]interface{}{"run_id": report.RunID})
	logger.Info("Run started", "theme", o.opts.Theme, "workers", o.opts.Workers, "dry_run", o.opts.DryRun)

	if err := o.store.Load(ctx); err != nil {
		return o.fail(ctx, logger, report, fmt.Errorf("load run metadata: %w", err))
	}

	listing, err := o.lister.List(ctx)
	if err != nil {
		return o.fail(ctx, logger, report, err)
	}
	report.Listed = len(listing.Descriptors)

	selected := domain.SelectChanged(listing.Descriptors, o.store)
	for _, d := range selected {
		report.Selected = append(report.Selected, d.Identifier)
	}

	logger.Info("Datasets selected",
		"listed", report.Listed,
		"selected", len(selected),
		"unchanged", report.Listed-len(selected))
	o.metrics.RecordGauge("datasets.listed", float64(report.Listed), nil)
	o.metrics.RecordGauge("datasets.selected", float64(len(selected)), nil)

	if o.opts.DryRun {
		for _, d := range selected {
			logger.Info("Would fetch dataset",
				"dataset_id", d.Identifier,
				"title", d.Title,
				"modified_at", d.ModifiedAt.Format(time.RFC3339),
				"url", d.DownloadURL)
		}
		report.Finalize(o.now().UTC(), true)
		return report, nil
	}

	o.dispatch(ctx, logger, selected, report)

	// Skip rewriting metadata when nothing changed and it was readable
	if len(report.Succeeded) > 0 || o.store.Recovered() {
		if err := o.store.Persist(context.WithoutCancel(ctx)); err != nil {
			return o.fail(ctx, logger, report, fmt.Errorf("persist run metadata: %w", err))
		}
	}

	report.Finalize(o.now().UTC(), false)
	o.finish(ctx, logger, report)
	return report, nil
}

// dispatch runs one task per descriptor on a bounded pool. Results are
// consumed here, on the calling goroutine, which is the only writer of the
// store. It returns once every task has finished.
func (o *Orchestrator) dispatch(ctx context.Context, logger ports.Logger, selected []domain.DatasetDescriptor, report *domain.JobReport) {
	results := make(chan Result)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	go func() {
		for _, d := range selected {
			d := d
			g.Go(func() error {
				res := o.processor.Process(ctx, d)
				res.Descriptor = d
				results <- res
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for res := range results {
		id := res.Descriptor.Identifier
		if !res.OK() {
			report.Failed = append(report.Failed, domain.Failure{
				DatasetID: id,
				Kind:      domain.KindOf(res.Err),
				Reason:    res.Err.Error(),
			})
			continue
		}

		o.store.RecordSuccess(domain.RunRecord{
			DatasetID:       id,
			LastProcessedAt: res.Descriptor.ModifiedAt,
			ProcessedAt:     o.now().UTC(),
			OutputKey:       res.OutputKey,
			Checksum:        res.Checksum,
			Bytes:           res.Bytes,
		})
		report.Succeeded = append(report.Succeeded, id)
	}

	logger.Info("Workers finished", "succeeded", len(report.Succeeded), "failed", len(report.Failed))
}

func (o *Orchestrator) fail(ctx context.Context, logger ports.Logger, report *domain.JobReport, err error) (*domain.JobReport, error) {
	report.Fail(o.now().UTC(), err)
	logger.Error("Run failed", "error", err, "kind", string(domain.KindOf(err)))
	o.finish(ctx, logger, report)
	return report, err
}

func (o *Orchestrator) finish(ctx context.Context, logger ports.Logger, report *domain.JobReport) {
	duration := report.FinishedAt.Sub(report.StartedAt)
	o.metrics.IncrementCounter("runs", map[string]string{"status": report.Status})
	o.metrics.RecordHistogram("run.duration_seconds", duration.Seconds(), nil)

	logger.Info("Run finished",
		"status", report.Status,
		"selected", len(report.Selected),
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"duration_ms", duration.Milliseconds())

	if o.reports == nil || o.opts.DryRun {
		return
	}
	if _, err := o.reports.Write(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("Failed to write run report", "error", err)
	}
}
