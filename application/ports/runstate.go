package ports

import (
	"context"

	"hospitalsync/internal/domain"
)

// RunStateBackend persists the run metadata between invocations.
type RunStateBackend interface {
	// Load returns the stored state. A backend that holds nothing yet returns an
	// empty state and no error; unreadable data is reported wrapped in
	// domain.ErrMetadataCorrupt.
	Load(ctx context.Context) (*domain.RunState, error)

	// Save replaces the stored state.
	Save(ctx context.Context, state *domain.RunState) error
}
