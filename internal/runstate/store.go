// Package runstate is the run metadata store: which datasets were processed,
// and which upstream version each one was processed at.
package runstate

import (
	"context"
	"time"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
)

// Store is loaded once at the start of a run and persisted once at the end.
// It is not safe for concurrent use; only the orchestrator goroutine touches it.
type Store struct {
	backend ports.RunStateBackend
	logger  ports.Logger
	metrics ports.Metrics
	now     func() time.Time

	state     *domain.RunState
	recovered bool
	dirty     bool
}

func New(backend ports.RunStateBackend, logger ports.Logger, metrics ports.Metrics) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		state:   domain.NewRunState(),
	}
}

// Load reads the backend. Unreadable or corrupt metadata is logged and
// replaced by an empty state, so every dataset is selected again. Only a
// cancelled context is returned as an error.
func (s *Store) Load(ctx context.Context) error {
	state, err := s.backend.Load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.logger.Warn("Run metadata unreadable, starting from an empty store",
			"error", err,
			"kind", string(domain.KindOf(err)))
		s.metrics.IncrementCounter("runstate.load.corrupt", nil)

		s.state = domain.NewRunState()
		s.recovered = true
		return nil
	}

	s.state = state
	s.recovered = false
	s.logger.Info("Run metadata loaded", "records", len(state.Records), "last_run", state.LastRun)
	s.metrics.RecordGauge("runstate.records", float64(len(state.Records)), nil)
	return nil
}

// Recovered reports whether Load replaced unreadable metadata with an empty store
func (s *Store) Recovered() bool {
	return s.recovered
}

// LastProcessed returns the upstream modification time of the last
// successfully processed version of a dataset
func (s *Store) LastProcessed(id string) (time.Time, bool) {
	return s.state.LastProcessed(id)
}

// RecordSuccess creates or overwrites the record for rec.DatasetID
func (s *Store) RecordSuccess(rec domain.RunRecord) {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now().UTC()
	}
	s.state.Put(rec)
	s.dirty = true
}

// Persist writes the state with a fresh LastRun stamp
func (s *Store) Persist(ctx context.Context) error {
	s.state.LastRun = s.now().UTC()
	s.state.Version = domain.RunStateVersion

	if err := s.backend.Save(ctx, s.state); err != nil {
		s.metrics.IncrementCounter("runstate.persist.errors", nil)
		return err
	}

	s.logger.Info("Run metadata persisted", "records", len(s.state.Records), "changed", s.dirty)
	s.metrics.IncrementCounter("runstate.persist.success", nil)
	s.dirty = false
	return nil
}

// Records returns a snapshot ordered by dataset identifier
func (s *Store) Records() []domain.RunRecord {
	return s.state.Sorted()
}

// LastRun is the time of the last persisted run, zero if none
func (s *Store) LastRun() time.Time {
	return s.state.LastRun
}
