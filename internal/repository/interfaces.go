package repository

import (
	"context"

	"rivermonitor/internal/model"
	"rivermonitor/internal/query"
)

// ObservationRepository defines the interface for water-level data operations.
// Errors are *apperror.Error values.
type ObservationRepository interface {
	// Create operations

	// Insert stores obs inside a transaction and fills in obs.ID. beforeCommit,
	// if set, runs after the row is written and before the commit; an error
	// from it rolls the insert back and is returned unchanged.
	Insert(ctx context.Context, obs *model.Observation, beforeCommit func() error) error

	// Read operations
	Find(ctx context.Context, w query.Window) ([]model.Observation, error)
	// GetByTimestamp returns nil, nil when no record has that timestamp.
	GetByTimestamp(ctx context.Context, ts int64) (*model.Observation, error)
	// LatestTimestamp returns 0 for an empty store.
	LatestTimestamp(ctx context.Context) (int64, error)
	Timestamps(ctx context.Context) ([]int64, error)
}
