package service

import (
	"context"
	"fmt"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/repo"
)

// TripService answers queries over the cleaned trips of completed runs.
type TripService struct {
	repo repo.TripRepo
}

// NewTripService constructs a TripService backed by the provided TripRepo.
func NewTripService(r repo.TripRepo) *TripService {
	return &TripService{repo: r}
}

// List returns one page of trips matching f, newest pickup first, and the
// total number of matches.
func (s *TripService) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error) {
	if err := validateFilter(f); err != nil {
		return nil, 0, err
	}
	trips, total, err := s.repo.ListPaged(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	return trips, total, nil
}

// Summary returns the trip count and averages over all stored trips.
func (s *TripService) Summary(ctx context.Context) (domain.TripSummary, error) {
	sum, err := s.repo.Summary(ctx)
	if err != nil {
		return domain.TripSummary{}, fmt.Errorf("service.TripService.Summary: %w", err)
	}
	return sum, nil
}

func validateFilter(f domain.TripFilter) error {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return fmt.Errorf("%w: end must not be before start", domain.ErrValidation)
	}
	if f.MinDistance != nil && *f.MinDistance < 0 {
		return fmt.Errorf("%w: min_distance must not be negative", domain.ErrValidation)
	}
	if f.MinDistance != nil && f.MaxDistance != nil && *f.MaxDistance < *f.MinDistance {
		return fmt.Errorf("%w: max_distance must not be less than min_distance", domain.ErrValidation)
	}
	if f.TimeOfDay != nil {
		if _, err := f.TimeOfDay.Hours(); err != nil {
			return err
		}
	}
	return nil
}
