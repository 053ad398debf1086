package store

import (
	"context"
	"errors"

	"mdvrp/internal/model"
)

// Store persists runs and their progress snapshots.
type Store interface {
	// CreateRun assigns an id and timestamps and stores the run.
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	// ListRuns pages through runs ordered by id. status filters when set.
	ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error)
	UpdateRun(ctx context.Context, run model.Run) error

	SaveSnapshots(ctx context.Context, runID string, snaps []model.Snapshot) error
	ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)
}

var ErrNotFound = errors.New("not found")

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
