package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// RunRepo defines the persistence operations for pipeline runs.
type RunRepo interface {
	// Create inserts a new run. A zero ID or StartedAt is filled by the store.
	Create(ctx context.Context, run domain.Run) (domain.Run, error)

	// Finish records the final status, counts, error and finish time of a run.
	// Returns domain.ErrNotFound if the run does not exist.
	Finish(ctx context.Context, run domain.Run) (domain.Run, error)

	// GetByID retrieves a run by primary key.
	// Returns domain.ErrNotFound if no run with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error)

	// ListPaged returns one page of runs, newest first, and the total count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error)
}

// pgRunRepo is the Postgres implementation of RunRepo.
type pgRunRepo struct {
	db db
}

// NewRunRepo constructs a RunRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRunRepo(db db) RunRepo {
	return &pgRunRepo{db: db}
}

const runColumns = `id, rule_version, source, status, total_rows, accepted_rows,
		excluded_rows, error, started_at, finished_at`

func (r *pgRunRepo) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	const q = `
		INSERT INTO runs (id, rule_version, source, status, started_at)
		VALUES (COALESCE(@id, gen_random_uuid()), @rule_version, @source, @status, COALESCE(@started_at, now()))
		RETURNING ` + runColumns

	args := pgx.NamedArgs{
		"id":           nullUUID(run.ID),
		"rule_version": run.RuleVersion,
		"source":       run.Source,
		"status":       string(run.Status),
		"started_at":   nullTime(run.StartedAt),
	}

	result, err := scanRun(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Run{}, fmt.Errorf("repo.RunRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgRunRepo) Finish(ctx context.Context, run domain.Run) (domain.Run, error) {
	const q = `
		UPDATE runs
		SET status        = @status,
		    total_rows    = @total_rows,
		    accepted_rows = @accepted_rows,
		    excluded_rows = @excluded_rows,
		    error         = @error,
		    finished_at   = COALESCE(@finished_at, now())
		WHERE id = @id
		RETURNING ` + runColumns

	args := pgx.NamedArgs{
		"id":            run.ID,
		"status":        string(run.Status),
		"total_rows":    run.TotalRows,
		"accepted_rows": run.AcceptedRows,
		"excluded_rows": run.ExcludedRows,
		"error":         run.Error,
		"finished_at":   run.FinishedAt,
	}

	result, err := scanRun(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Run{}, fmt.Errorf("repo.RunRepo.Finish: %w", err)
	}
	return result, nil
}

func (r *pgRunRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs WHERE id = @id`

	result, err := scanRun(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Run{}, fmt.Errorf("repo.RunRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgRunRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.RunRepo.ListPaged: count: %w", err)
	}

	q := `SELECT ` + runColumns + `
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.PerPage, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RunRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.RunRepo.ListPaged: scan: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.RunRepo.ListPaged: rows: %w", err)
	}
	return runs, total, nil
}

// scanRun maps a single database row into a domain.Run.
func scanRun(s scanner) (domain.Run, error) {
	var (
		run      domain.Run
		id       pgtype.UUID
		status   string
		finished pgtype.Timestamptz
	)

	err := s.Scan(&id, &run.RuleVersion, &run.Source, &status, &run.TotalRows, &run.AcceptedRows,
		&run.ExcludedRows, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, domain.ErrNotFound
		}
		return domain.Run{}, err
	}

	run.ID = uuid.UUID(id.Bytes)
	run.Status = domain.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	if finished.Valid {
		t := finished.Time.UTC()
		run.FinishedAt = &t
	}
	return run, nil
}

// nullUUID maps the zero UUID to NULL so the database default applies.
func nullUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

// nullTime maps the zero time to NULL so the database default applies.
func nullTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
