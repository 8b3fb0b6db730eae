package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/geo"
	"github.com/pkordes/nyc-taxi/internal/repo"
	"github.com/pkordes/nyc-taxi/testutil"
)

// repos bundles one backend's implementations.
type repos struct {
	runs       repo.RunRepo
	trips      repo.TripRepo
	exclusions repo.ExclusionRepo
}

// backends lists every store implementation. Each test runs once per backend.
var backends = []struct {
	name string
	open func(t *testing.T) repos
}{
	{"sqlite", func(t *testing.T) repos {
		db := testutil.NewSQLiteDB(t)
		return repos{
			runs:       repo.NewSQLiteRunRepo(db),
			trips:      repo.NewSQLiteTripRepo(db),
			exclusions: repo.NewSQLiteExclusionRepo(db),
		}
	}},
	{"postgres", func(t *testing.T) repos {
		pool := testutil.NewPool(t)

		tx, err := pool.Begin(context.Background())
		require.NoError(t, err, "begin transaction")

		// Rollback discards all changes made during the test; no cleanup SQL needed.
		t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

		return repos{
			runs:       repo.NewRunRepo(tx),
			trips:      repo.NewTripRepo(tx),
			exclusions: repo.NewExclusionRepo(tx),
		}
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, r repos)) {
	t.Helper()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

func ptr[T any](v T) *T { return &v }

var baseTime = time.Date(2016, 3, 14, 17, 24, 55, 0, time.UTC)

// tripAt returns a trip that satisfies every table constraint.
func tripAt(pickup time.Time, km float64) domain.EnrichedRecord {
	const dur = 900
	weekday := (int(pickup.Weekday()) + 6) % 7
	fpk := 12.0 / (km + 1e-6)
	return domain.EnrichedRecord{
		PickupAt:        pickup,
		DropoffAt:       pickup.Add(dur * time.Second),
		PickupLat:       40.7679,
		PickupLon:       -73.9822,
		DropoffLat:      40.7390,
		DropoffLon:      -73.9999,
		TripDistanceKm:  km,
		TripDurationSec: dur,
		FareAmount:      ptr(12.0),
		TipAmount:       ptr(2.0),
		PassengerCount:  ptr(1),
		PaymentType:     ptr("1"),
		AvgSpeedKmh:     km * 3600 / dur,
		FarePerKm:       &fpk,
		PickupHour:      pickup.Hour(),
		Weekday:         weekday,
		IsWeekend:       weekday >= 5,
		HaversineKm:     geo.HaversineKm(40.7679, -73.9822, 40.7390, -73.9999),
	}
}

// mustCreateRun inserts a running run.
func mustCreateRun(t *testing.T, r repos, started time.Time) domain.Run {
	t.Helper()
	run, err := r.runs.Create(context.Background(), domain.Run{
		ID:          uuid.New(),
		RuleVersion: "v1",
		Source:      "test.csv",
		Status:      domain.RunRunning,
		StartedAt:   started,
	})
	require.NoError(t, err)
	return run
}

// mustCompleteRun stores trips under a new run and marks it completed.
func mustCompleteRun(t *testing.T, r repos, trips ...domain.EnrichedRecord) domain.Run {
	t.Helper()
	ctx := context.Background()
	run := mustCreateRun(t, r, baseTime)

	_, err := r.trips.InsertBatch(ctx, run.ID, trips)
	require.NoError(t, err)

	run.Status = domain.RunCompleted
	run.TotalRows = len(trips)
	run.AcceptedRows = len(trips)
	run, err = r.runs.Finish(ctx, run)
	require.NoError(t, err)
	return run
}
