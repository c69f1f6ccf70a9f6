// Package runstore holds the run-state backends: a JSON file (default) and a
// PostgreSQL table.
package runstore

import (
	"context"
	"fmt"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
	"hospitalsync/infrastructure/database"
)

// Create returns the backend selected by cfg.Adapters.RunState and a close
// function for whatever connection it opened
func Create(ctx context.Context, cfg *config.Config, obs ports.Observability) (ports.RunStateBackend, func() error, error) {
	switch cfg.Adapters.RunState {
	case "file":
		return NewFileBackend(cfg.State.Path), func() error { return nil }, nil

	case "postgres":
		db, err := database.NewPostgresAdapter(&cfg.Database, obs)
		if err != nil {
			return nil, nil, err
		}
		backend := NewPostgresBackend(db, cfg.Database.Table)
		if err := backend.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return backend, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported run state adapter: %s", cfg.Adapters.RunState)
	}
}
