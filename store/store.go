// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/equalcollective/xray/domain"
)

// Store defines the interface for durable run/step persistence. The ingest
// path only needs append/upsert semantics; the query path needs runs by id,
// recent runs, and a run's steps in chronological order.
type Store interface {
	// Run operations
	UpsertRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error)

	// Step operations
	UpsertStep(ctx context.Context, step *domain.Step) error
	GetSteps(ctx context.Context, runID string) ([]domain.Step, error)

	// Lifecycle
	Close() error
}

// RunFilter provides filtering options for listing runs.
type RunFilter struct {
	Name   string
	Status domain.RunStatus
	Limit  int
}
