package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// ExclusionRepo defines the persistence operations for excluded records.
// Every exclusion belongs to a run; like trips they are append-only.
type ExclusionRepo interface {
	// InsertBatch appends exclusions under runID, preserving slice order.
	InsertBatch(ctx context.Context, runID uuid.UUID, recs []domain.ExclusionRecord) (int64, error)

	// ListByRunPaged returns one page of a run's exclusions in arrival order
	// and the run's total exclusion count.
	ListByRunPaged(ctx context.Context, runID uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error)

	// ListByRun returns every exclusion of a run in arrival order.
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error)

	// CountByReason returns how many exclusions a run has per reason code.
	// Reasons with no exclusions are absent.
	CountByReason(ctx context.Context, runID uuid.UUID) (map[domain.ReasonCode]int, error)
}

// pgExclusionRepo is the Postgres implementation of ExclusionRepo.
type pgExclusionRepo struct {
	db db
}

// NewExclusionRepo constructs an ExclusionRepo backed by the provided db connection.
func NewExclusionRepo(db db) ExclusionRepo {
	return &pgExclusionRepo{db: db}
}

var exclusionInsertColumns = []string{
	"run_id", "raw_row_id", "reason_code",
	"pickup_ts_raw", "dropoff_ts_raw",
	"pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon",
	"distance_raw", "fare_raw",
}

const exclusionSelect = `
		SELECT raw_row_id, reason_code, pickup_ts_raw, dropoff_ts_raw,
		       pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, distance_raw, fare_raw
		FROM exclusions
		WHERE run_id = @run_id
		ORDER BY id`

func (r *pgExclusionRepo) InsertBatch(ctx context.Context, runID uuid.UUID, recs []domain.ExclusionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	run := pgtype.UUID{Bytes: runID, Valid: true}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"exclusions"}, exclusionInsertColumns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			e := recs[i]
			return []any{
				run, e.RawRowID, string(e.ReasonCode),
				e.PickupTsRaw, e.DropoffTsRaw,
				e.PickupLat, e.PickupLon, e.DropoffLat, e.DropoffLon,
				e.DistanceRaw, e.FareRaw,
			}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("repo.ExclusionRepo.InsertBatch: %w", err)
	}
	return n, nil
}

func (r *pgExclusionRepo) ListByRunPaged(ctx context.Context, runID uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM exclusions WHERE run_id = @run_id`,
		pgx.NamedArgs{"run_id": runID}).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ExclusionRepo.ListByRunPaged: count: %w", err)
	}

	recs, err := r.query(ctx, exclusionSelect+` LIMIT @limit OFFSET @offset`, pgx.NamedArgs{
		"run_id": runID,
		"limit":  p.PerPage,
		"offset": p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ExclusionRepo.ListByRunPaged: %w", err)
	}
	return recs, total, nil
}

func (r *pgExclusionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error) {
	recs, err := r.query(ctx, exclusionSelect, pgx.NamedArgs{"run_id": runID})
	if err != nil {
		return nil, fmt.Errorf("repo.ExclusionRepo.ListByRun: %w", err)
	}
	return recs, nil
}

func (r *pgExclusionRepo) CountByReason(ctx context.Context, runID uuid.UUID) (map[domain.ReasonCode]int, error) {
	const q = `
		SELECT reason_code, COUNT(*)
		FROM exclusions
		WHERE run_id = @run_id
		GROUP BY reason_code`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"run_id": runID})
	if err != nil {
		return nil, fmt.Errorf("repo.ExclusionRepo.CountByReason: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ReasonCode]int)
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("repo.ExclusionRepo.CountByReason: scan: %w", err)
		}
		counts[domain.ReasonCode(reason)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ExclusionRepo.CountByReason: rows: %w", err)
	}
	return counts, nil
}

func (r *pgExclusionRepo) query(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.ExclusionRecord, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []domain.ExclusionRecord{}
	for rows.Next() {
		var (
			e      domain.ExclusionRecord
			reason string
		)
		err := rows.Scan(&e.RawRowID, &reason, &e.PickupTsRaw, &e.DropoffTsRaw,
			&e.PickupLat, &e.PickupLon, &e.DropoffLat, &e.DropoffLon, &e.DistanceRaw, &e.FareRaw)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.ReasonCode = domain.ReasonCode(reason)
		recs = append(recs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return recs, nil
}
