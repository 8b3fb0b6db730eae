package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// TripRepo defines the persistence operations for accepted trips.
// Trips are append-only: there is no update or single-row delete.
type TripRepo interface {
	// InsertBatch appends trips under runID, preserving slice order, and
	// returns the number of rows written.
	InsertBatch(ctx context.Context, runID uuid.UUID, trips []domain.EnrichedRecord) (int64, error)

	// ListPaged returns one page of trips from completed runs matching f,
	// newest pickup first, and the total number of matches.
	ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error)

	// ListByRun returns every trip of one run in insertion order.
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StoredTrip, error)

	// Summary aggregates all trips from completed runs.
	Summary(ctx context.Context) (domain.TripSummary, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

// tripInsertColumns is the cleaned-output column set plus run_id.
var tripInsertColumns = []string{
	"run_id",
	"pickup_datetime", "dropoff_datetime",
	"pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon",
	"trip_distance_km", "trip_duration_sec",
	"fare_amount", "tip_amount", "passenger_count", "payment_type",
	"avg_speed_kmh", "fare_per_km", "pickup_hour", "weekday", "is_weekend", "haversine_km",
}

var tripSelectColumns = "id, " + strings.Join(tripInsertColumns, ", ")

// InsertBatch uses COPY; ids are assigned in slice order.
func (r *pgTripRepo) InsertBatch(ctx context.Context, runID uuid.UUID, trips []domain.EnrichedRecord) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	run := pgtype.UUID{Bytes: runID, Valid: true}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"trips"}, tripInsertColumns,
		pgx.CopyFromSlice(len(trips), func(i int) ([]any, error) {
			t := trips[i]
			return []any{
				run,
				t.PickupAt, t.DropoffAt,
				t.PickupLat, t.PickupLon, t.DropoffLat, t.DropoffLon,
				t.TripDistanceKm, t.TripDurationSec,
				t.FareAmount, t.TipAmount, t.PassengerCount, t.PaymentType,
				t.AvgSpeedKmh, t.FarePerKm, t.PickupHour, t.Weekday, t.IsWeekend, t.HaversineKm,
			}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("repo.TripRepo.InsertBatch: %w", err)
	}
	return n, nil
}

func (r *pgTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error) {
	where, args, err := tripWhere(f)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE `+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: count: %w", err)
	}

	args["limit"] = p.PerPage
	args["offset"] = p.Offset()
	q := `SELECT ` + tripSelectColumns + `
		FROM trips
		WHERE ` + where + `
		ORDER BY pickup_datetime DESC, id DESC
		LIMIT @limit OFFSET @offset`

	trips, err := r.queryTrips(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}
	return trips, total, nil
}

func (r *pgTripRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StoredTrip, error) {
	q := `SELECT ` + tripSelectColumns + ` FROM trips WHERE run_id = @run_id ORDER BY id`

	trips, err := r.queryTrips(ctx, q, pgx.NamedArgs{"run_id": runID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByRun: %w", err)
	}
	return trips, nil
}

func (r *pgTripRepo) Summary(ctx context.Context) (domain.TripSummary, error) {
	const q = `
		SELECT COUNT(*), AVG(avg_speed_kmh), AVG(fare_per_km)
		FROM trips
		WHERE ` + completedRuns

	var (
		s         domain.TripSummary
		speed, fp pgtype.Float8
	)
	if err := r.db.QueryRow(ctx, q).Scan(&s.TotalTrips, &speed, &fp); err != nil {
		return domain.TripSummary{}, fmt.Errorf("repo.TripRepo.Summary: %w", err)
	}
	if speed.Valid {
		s.AvgSpeedKmh = &speed.Float64
	}
	if fp.Valid {
		s.AvgFarePerKm = &fp.Float64
	}
	return s, nil
}

func (r *pgTripRepo) queryTrips(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.StoredTrip, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []domain.StoredTrip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return trips, nil
}

// tripWhere builds the WHERE clause for f. Only trips of completed runs match.
func tripWhere(f domain.TripFilter) (string, pgx.NamedArgs, error) {
	conds := []string{completedRuns}
	args := pgx.NamedArgs{}

	if f.RunID != nil {
		conds = append(conds, "run_id = @run_id")
		args["run_id"] = *f.RunID
	}
	if f.Start != nil {
		conds = append(conds, "pickup_datetime >= @start")
		args["start"] = f.Start.UTC()
	}
	if f.End != nil {
		conds = append(conds, "pickup_datetime <= @end")
		args["end"] = f.End.UTC()
	}
	if f.MinDistance != nil {
		conds = append(conds, "trip_distance_km >= @min_distance")
		args["min_distance"] = *f.MinDistance
	}
	if f.MaxDistance != nil {
		conds = append(conds, "trip_distance_km <= @max_distance")
		args["max_distance"] = *f.MaxDistance
	}
	if f.TimeOfDay != nil {
		hours, err := f.TimeOfDay.Hours()
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, "pickup_hour = ANY(@hours)")
		args["hours"] = hours
	}
	if f.Weekend != nil {
		conds = append(conds, "is_weekend = @weekend")
		args["weekend"] = *f.Weekend
	}
	return strings.Join(conds, " AND "), args, nil
}

// scanTrip maps a single database row into a domain.StoredTrip.
func scanTrip(s scanner) (domain.StoredTrip, error) {
	var (
		t   domain.StoredTrip
		run pgtype.UUID
	)
	err := s.Scan(&t.ID, &run,
		&t.PickupAt, &t.DropoffAt,
		&t.PickupLat, &t.PickupLon, &t.DropoffLat, &t.DropoffLon,
		&t.TripDistanceKm, &t.TripDurationSec,
		&t.FareAmount, &t.TipAmount, &t.PassengerCount, &t.PaymentType,
		&t.AvgSpeedKmh, &t.FarePerKm, &t.PickupHour, &t.Weekday, &t.IsWeekend, &t.HaversineKm,
	)
	if err != nil {
		return domain.StoredTrip{}, err
	}
	t.RunID = uuid.UUID(run.Bytes)
	t.PickupAt = t.PickupAt.UTC()
	t.DropoffAt = t.DropoffAt.UTC()
	return t, nil
}
