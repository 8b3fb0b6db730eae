package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/repo"
)

// ExportService returns the full output of one run for download.
type ExportService struct {
	runs       repo.RunRepo
	trips      repo.TripRepo
	exclusions repo.ExclusionRepo
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(runs repo.RunRepo, trips repo.TripRepo, exclusions repo.ExclusionRepo) *ExportService {
	return &ExportService{runs: runs, trips: trips, exclusions: exclusions}
}

// Trips returns every trip accepted by the run, in output order.
func (s *ExportService) Trips(ctx context.Context, runID uuid.UUID) ([]domain.EnrichedRecord, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, fmt.Errorf("service.ExportService.Trips: %w", err)
	}
	stored, err := s.trips.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Trips: %w", err)
	}
	out := make([]domain.EnrichedRecord, len(stored))
	for i, t := range stored {
		out[i] = t.EnrichedRecord
	}
	return out, nil
}

// Exclusions returns every exclusion the run recorded, in arrival order.
func (s *ExportService) Exclusions(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, fmt.Errorf("service.ExportService.Exclusions: %w", err)
	}
	recs, err := s.exclusions.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Exclusions: %w", err)
	}
	return recs, nil
}
