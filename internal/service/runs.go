package service

import (
	"context"
	"fmt"

	"github.com/equalcollective/xray/domain"
	"github.com/equalcollective/xray/store"
)

// GetRun retrieves a run by ID. Returns nil when it does not exist.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, most recent first. A zero limit uses the configured
// default.
func (s *Service) ListRuns(ctx context.Context, filter store.RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.config.RunListLimit
	}
	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetSteps retrieves a run's steps in chronological order.
func (s *Service) GetSteps(ctx context.Context, runID string) ([]domain.Step, error) {
	steps, err := s.store.GetSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	return steps, nil
}
