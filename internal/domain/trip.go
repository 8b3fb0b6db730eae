package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredTrip is an EnrichedRecord as read back from the store.
type StoredTrip struct {
	ID    int64
	RunID uuid.UUID
	EnrichedRecord
}

// TimeOfDay buckets pickup hours for the trips query.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"   // 05-11
	Afternoon TimeOfDay = "afternoon" // 12-16
	Evening   TimeOfDay = "evening"   // 17-20
	Night     TimeOfDay = "night"     // 21-04
)

// Hours returns the pickup hours in the bucket.
func (t TimeOfDay) Hours() ([]int, error) {
	var from, to int
	switch t {
	case Morning:
		from, to = 5, 11
	case Afternoon:
		from, to = 12, 16
	case Evening:
		from, to = 17, 20
	case Night:
		return []int{21, 22, 23, 0, 1, 2, 3, 4}, nil
	default:
		return nil, fmt.Errorf("%w: unknown time_of_day %q", ErrValidation, string(t))
	}
	hours := make([]int, 0, to-from+1)
	for h := from; h <= to; h++ {
		hours = append(hours, h)
	}
	return hours, nil
}

// TripFilter narrows the trips query. Nil fields do not filter.
type TripFilter struct {
	Start       *time.Time // pickup at or after
	End         *time.Time // pickup at or before
	MinDistance *float64
	MaxDistance *float64
	TimeOfDay   *TimeOfDay
	Weekend     *bool
	RunID       *uuid.UUID
}

// TripSummary aggregates accepted trips across completed runs.
// Averages are nil when there are no trips.
type TripSummary struct {
	TotalTrips   int64
	AvgSpeedKmh  *float64
	AvgFarePerKm *float64
}
