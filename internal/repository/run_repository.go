package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// RunRepository handles durable persistence of discovery runs. The pipeline
// keeps live run state in memory; this repository stores snapshots so that
// finished runs survive a restart and can be listed later.
type RunRepository interface {
	// Save inserts a run or updates an existing one with the same ID.
	// The run's steps and graph are stored as JSON documents.
	// Returns domain.ErrInvalidInput if the run is nil, has a nil ID,
	// or has an empty query.
	Save(ctx context.Context, run *domain.Run) error

	// GetByID retrieves a run by its ID.
	// Returns domain.ErrNotFound if no matching run exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)

	// List retrieves runs matching the filter criteria, newest first.
	// Returns the matching runs and the total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter RunFilter) ([]*domain.Run, int64, error)

	// Delete removes a run by its ID.
	// Returns domain.ErrNotFound if no matching run exists.
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	// Status filters to runs in any of the given states (optional).
	Status []domain.RunStatus

	// CVID filters to runs that used a specific CV (optional).
	CVID *uuid.UUID

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *RunFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
