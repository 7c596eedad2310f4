package ports

import (
	"context"

	"github.com/aretw0/conductor/pkg/domain"
)

// RunStore defines the interface for persisting runs.
// Engines checkpoint through it so awaiting or failed runs can be inspected and resumed.
type RunStore interface {
	// Save persists the run under its ID.
	Save(ctx context.Context, run *domain.Run) error

	// Load retrieves a run.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Run, error)

	// Delete removes a run.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of stored runs.
	List(ctx context.Context) ([]string, error)
}
