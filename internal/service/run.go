package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/repo"
)

// RunService reads back runs and their exclusion audit.
type RunService struct {
	runs       repo.RunRepo
	exclusions repo.ExclusionRepo
}

// NewRunService constructs a RunService.
func NewRunService(runs repo.RunRepo, exclusions repo.ExclusionRepo) *RunService {
	return &RunService{runs: runs, exclusions: exclusions}
}

// GetByID returns a run with its per-reason exclusion counts.
func (s *RunService) GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("service.RunService.GetByID: %w", err)
	}
	counts, err := s.exclusions.CountByReason(ctx, id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("service.RunService.GetByID: %w", err)
	}
	run.ExcludedByReason = counts
	return run, nil
}

// List returns one page of runs, newest first, and the total number of runs.
func (s *RunService) List(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error) {
	runs, total, err := s.runs.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RunService.List: %w", err)
	}
	return runs, total, nil
}

// ListExclusions returns one page of a run's exclusions in arrival order.
func (s *RunService) ListExclusions(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error) {
	if _, err := s.runs.GetByID(ctx, id); err != nil {
		return nil, 0, fmt.Errorf("service.RunService.ListExclusions: %w", err)
	}
	recs, total, err := s.exclusions.ListByRunPaged(ctx, id, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RunService.ListExclusions: %w", err)
	}
	return recs, total, nil
}
