package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// sqliteTimeLayout stores timestamps as fixed-width UTC text so that string
// comparison and ORDER BY agree with time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteBatchSize bounds rows per INSERT statement; SQLite caps bound
// parameters per statement.
const sqliteBatchSize = 500

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ---- models ----------------------------------------------------------------

type sqliteRun struct {
	ID           string  `gorm:"column:id;primaryKey"`
	RuleVersion  string  `gorm:"column:rule_version"`
	Source       string  `gorm:"column:source"`
	Status       string  `gorm:"column:status"`
	TotalRows    int     `gorm:"column:total_rows"`
	AcceptedRows int     `gorm:"column:accepted_rows"`
	ExcludedRows int     `gorm:"column:excluded_rows"`
	Error        string  `gorm:"column:error"`
	StartedAt    string  `gorm:"column:started_at"`
	FinishedAt   *string `gorm:"column:finished_at"`
}

func (sqliteRun) TableName() string { return "runs" }

func (m sqliteRun) toDomain() (domain.Run, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Run{}, fmt.Errorf("run id %q: %w", m.ID, err)
	}
	started, err := parseSQLiteTime(m.StartedAt)
	if err != nil {
		return domain.Run{}, fmt.Errorf("run started_at: %w", err)
	}
	run := domain.Run{
		ID:           id,
		RuleVersion:  m.RuleVersion,
		Source:       m.Source,
		Status:       domain.RunStatus(m.Status),
		TotalRows:    m.TotalRows,
		AcceptedRows: m.AcceptedRows,
		ExcludedRows: m.ExcludedRows,
		Error:        m.Error,
		StartedAt:    started,
	}
	if m.FinishedAt != nil {
		finished, err := parseSQLiteTime(*m.FinishedAt)
		if err != nil {
			return domain.Run{}, fmt.Errorf("run finished_at: %w", err)
		}
		run.FinishedAt = &finished
	}
	return run, nil
}

type sqliteTrip struct {
	ID              int64    `gorm:"column:id;primaryKey;autoIncrement"`
	RunID           string   `gorm:"column:run_id"`
	PickupDatetime  string   `gorm:"column:pickup_datetime"`
	DropoffDatetime string   `gorm:"column:dropoff_datetime"`
	PickupLat       float64  `gorm:"column:pickup_lat"`
	PickupLon       float64  `gorm:"column:pickup_lon"`
	DropoffLat      float64  `gorm:"column:dropoff_lat"`
	DropoffLon      float64  `gorm:"column:dropoff_lon"`
	TripDistanceKm  float64  `gorm:"column:trip_distance_km"`
	TripDurationSec int64    `gorm:"column:trip_duration_sec"`
	FareAmount      *float64 `gorm:"column:fare_amount"`
	TipAmount       *float64 `gorm:"column:tip_amount"`
	PassengerCount  *int     `gorm:"column:passenger_count"`
	PaymentType     *string  `gorm:"column:payment_type"`
	AvgSpeedKmh     float64  `gorm:"column:avg_speed_kmh"`
	FarePerKm       *float64 `gorm:"column:fare_per_km"`
	PickupHour      int      `gorm:"column:pickup_hour"`
	Weekday         int      `gorm:"column:weekday"`
	IsWeekend       bool     `gorm:"column:is_weekend"`
	HaversineKm     float64  `gorm:"column:haversine_km"`
}

func (sqliteTrip) TableName() string { return "trips" }

func newSQLiteTrip(runID uuid.UUID, t domain.EnrichedRecord) sqliteTrip {
	return sqliteTrip{
		RunID:           runID.String(),
		PickupDatetime:  formatSQLiteTime(t.PickupAt),
		DropoffDatetime: formatSQLiteTime(t.DropoffAt),
		PickupLat:       t.PickupLat,
		PickupLon:       t.PickupLon,
		DropoffLat:      t.DropoffLat,
		DropoffLon:      t.DropoffLon,
		TripDistanceKm:  t.TripDistanceKm,
		TripDurationSec: t.TripDurationSec,
		FareAmount:      t.FareAmount,
		TipAmount:       t.TipAmount,
		PassengerCount:  t.PassengerCount,
		PaymentType:     t.PaymentType,
		AvgSpeedKmh:     t.AvgSpeedKmh,
		FarePerKm:       t.FarePerKm,
		PickupHour:      t.PickupHour,
		Weekday:         t.Weekday,
		IsWeekend:       t.IsWeekend,
		HaversineKm:     t.HaversineKm,
	}
}

func (m sqliteTrip) toDomain() (domain.StoredTrip, error) {
	runID, err := uuid.Parse(m.RunID)
	if err != nil {
		return domain.StoredTrip{}, fmt.Errorf("trip run_id %q: %w", m.RunID, err)
	}
	pickup, err := parseSQLiteTime(m.PickupDatetime)
	if err != nil {
		return domain.StoredTrip{}, fmt.Errorf("trip pickup_datetime: %w", err)
	}
	dropoff, err := parseSQLiteTime(m.DropoffDatetime)
	if err != nil {
		return domain.StoredTrip{}, fmt.Errorf("trip dropoff_datetime: %w", err)
	}
	return domain.StoredTrip{
		ID:    m.ID,
		RunID: runID,
		EnrichedRecord: domain.EnrichedRecord{
			PickupAt:        pickup,
			DropoffAt:       dropoff,
			PickupLat:       m.PickupLat,
			PickupLon:       m.PickupLon,
			DropoffLat:      m.DropoffLat,
			DropoffLon:      m.DropoffLon,
			TripDistanceKm:  m.TripDistanceKm,
			TripDurationSec: m.TripDurationSec,
			FareAmount:      m.FareAmount,
			TipAmount:       m.TipAmount,
			PassengerCount:  m.PassengerCount,
			PaymentType:     m.PaymentType,
			AvgSpeedKmh:     m.AvgSpeedKmh,
			FarePerKm:       m.FarePerKm,
			PickupHour:      m.PickupHour,
			Weekday:         m.Weekday,
			IsWeekend:       m.IsWeekend,
			HaversineKm:     m.HaversineKm,
		},
	}, nil
}

type sqliteExclusion struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RunID        string `gorm:"column:run_id"`
	RawRowID     int64  `gorm:"column:raw_row_id"`
	ReasonCode   string `gorm:"column:reason_code"`
	PickupTsRaw  string `gorm:"column:pickup_ts_raw"`
	DropoffTsRaw string `gorm:"column:dropoff_ts_raw"`
	PickupLat    string `gorm:"column:pickup_lat"`
	PickupLon    string `gorm:"column:pickup_lon"`
	DropoffLat   string `gorm:"column:dropoff_lat"`
	DropoffLon   string `gorm:"column:dropoff_lon"`
	DistanceRaw  string `gorm:"column:distance_raw"`
	FareRaw      string `gorm:"column:fare_raw"`
}

func (sqliteExclusion) TableName() string { return "exclusions" }

func (m sqliteExclusion) toDomain() domain.ExclusionRecord {
	return domain.ExclusionRecord{
		RawRowID:     m.RawRowID,
		ReasonCode:   domain.ReasonCode(m.ReasonCode),
		PickupTsRaw:  m.PickupTsRaw,
		DropoffTsRaw: m.DropoffTsRaw,
		PickupLat:    m.PickupLat,
		PickupLon:    m.PickupLon,
		DropoffLat:   m.DropoffLat,
		DropoffLon:   m.DropoffLon,
		DistanceRaw:  m.DistanceRaw,
		FareRaw:      m.FareRaw,
	}
}

// ---- runs ------------------------------------------------------------------

type sqliteRunRepo struct {
	db *gorm.DB
}

// NewSQLiteRunRepo constructs a RunRepo on an embedded SQLite database.
func NewSQLiteRunRepo(db *gorm.DB) RunRepo {
	return &sqliteRunRepo{db: db}
}

func (r *sqliteRunRepo) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	row := sqliteRun{
		ID:          run.ID.String(),
		RuleVersion: run.RuleVersion,
		Source:      run.Source,
		Status:      string(run.Status),
		StartedAt:   formatSQLiteTime(run.StartedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.Create: %w", err)
	}
	out, err := row.toDomain()
	if err != nil {
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.Create: %w", err)
	}
	return out, nil
}

func (r *sqliteRunRepo) Finish(ctx context.Context, run domain.Run) (domain.Run, error) {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res := r.db.WithContext(ctx).Model(&sqliteRun{}).Where("id = ?", run.ID.String()).Updates(map[string]any{
		"status":        string(run.Status),
		"total_rows":    run.TotalRows,
		"accepted_rows": run.AcceptedRows,
		"excluded_rows": run.ExcludedRows,
		"error":         run.Error,
		"finished_at":   formatSQLiteTime(finished),
	})
	if res.Error != nil {
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.Finish: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.Finish: %w", domain.ErrNotFound)
	}
	return r.GetByID(ctx, run.ID)
}

func (r *sqliteRunRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	var row sqliteRun
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.GetByID: %w", domain.ErrNotFound)
		}
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.GetByID: %w", err)
	}
	out, err := row.toDomain()
	if err != nil {
		return domain.Run{}, fmt.Errorf("repo.SQLiteRunRepo.GetByID: %w", err)
	}
	return out, nil
}

func (r *sqliteRunRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&sqliteRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteRunRepo.ListPaged: count: %w", err)
	}

	var rows []sqliteRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC, id").
		Limit(p.PerPage).Offset(p.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteRunRepo.ListPaged: %w", err)
	}

	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, 0, fmt.Errorf("repo.SQLiteRunRepo.ListPaged: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, nil
}

// ---- trips -----------------------------------------------------------------

type sqliteTripRepo struct {
	db *gorm.DB
}

// NewSQLiteTripRepo constructs a TripRepo on an embedded SQLite database.
func NewSQLiteTripRepo(db *gorm.DB) TripRepo {
	return &sqliteTripRepo{db: db}
}

func (r *sqliteTripRepo) InsertBatch(ctx context.Context, runID uuid.UUID, trips []domain.EnrichedRecord) (int64, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	rows := make([]sqliteTrip, len(trips))
	for i, t := range trips {
		rows[i] = newSQLiteTrip(runID, t)
	}
	res := r.db.WithContext(ctx).CreateInBatches(&rows, sqliteBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("repo.SQLiteTripRepo.InsertBatch: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sqliteTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error) {
	scope, err := sqliteTripScope(f)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteTripRepo.ListPaged: %w", err)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&sqliteTrip{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteTripRepo.ListPaged: count: %w", err)
	}

	var rows []sqliteTrip
	err = r.db.WithContext(ctx).Scopes(scope).
		Order("pickup_datetime DESC, id DESC").
		Limit(p.PerPage).Offset(p.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteTripRepo.ListPaged: %w", err)
	}

	trips, err := sqliteTripsToDomain(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteTripRepo.ListPaged: %w", err)
	}
	return trips, total, nil
}

func (r *sqliteTripRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StoredTrip, error) {
	var rows []sqliteTrip
	err := r.db.WithContext(ctx).Where("run_id = ?", runID.String()).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteTripRepo.ListByRun: %w", err)
	}
	trips, err := sqliteTripsToDomain(rows)
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteTripRepo.ListByRun: %w", err)
	}
	return trips, nil
}

func (r *sqliteTripRepo) Summary(ctx context.Context) (domain.TripSummary, error) {
	var out struct {
		Total        int64
		AvgSpeed     *float64
		AvgFarePerKm *float64
	}
	err := r.db.WithContext(ctx).Model(&sqliteTrip{}).
		Select("COUNT(*) AS total, AVG(avg_speed_kmh) AS avg_speed, AVG(fare_per_km) AS avg_fare_per_km").
		Where(completedRuns).
		Scan(&out).Error
	if err != nil {
		return domain.TripSummary{}, fmt.Errorf("repo.SQLiteTripRepo.Summary: %w", err)
	}
	return domain.TripSummary{
		TotalTrips:   out.Total,
		AvgSpeedKmh:  out.AvgSpeed,
		AvgFarePerKm: out.AvgFarePerKm,
	}, nil
}

// sqliteTripScope is the gorm counterpart of tripWhere.
func sqliteTripScope(f domain.TripFilter) (func(*gorm.DB) *gorm.DB, error) {
	var hours []int
	if f.TimeOfDay != nil {
		var err error
		if hours, err = f.TimeOfDay.Hours(); err != nil {
			return nil, err
		}
	}

	return func(db *gorm.DB) *gorm.DB {
		db = db.Where(completedRuns)
		if f.RunID != nil {
			db = db.Where("run_id = ?", f.RunID.String())
		}
		if f.Start != nil {
			db = db.Where("pickup_datetime >= ?", formatSQLiteTime(*f.Start))
		}
		if f.End != nil {
			db = db.Where("pickup_datetime <= ?", formatSQLiteTime(*f.End))
		}
		if f.MinDistance != nil {
			db = db.Where("trip_distance_km >= ?", *f.MinDistance)
		}
		if f.MaxDistance != nil {
			db = db.Where("trip_distance_km <= ?", *f.MaxDistance)
		}
		if hours != nil {
			db = db.Where("pickup_hour IN ?", hours)
		}
		if f.Weekend != nil {
			db = db.Where("is_weekend = ?", *f.Weekend)
		}
		return db
	}, nil
}

func sqliteTripsToDomain(rows []sqliteTrip) ([]domain.StoredTrip, error) {
	trips := make([]domain.StoredTrip, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// ---- exclusions ------------------------------------------------------------

type sqliteExclusionRepo struct {
	db *gorm.DB
}

// NewSQLiteExclusionRepo constructs an ExclusionRepo on an embedded SQLite database.
func NewSQLiteExclusionRepo(db *gorm.DB) ExclusionRepo {
	return &sqliteExclusionRepo{db: db}
}

func (r *sqliteExclusionRepo) InsertBatch(ctx context.Context, runID uuid.UUID, recs []domain.ExclusionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	rows := make([]sqliteExclusion, len(recs))
	for i, e := range recs {
		rows[i] = sqliteExclusion{
			RunID:        runID.String(),
			RawRowID:     e.RawRowID,
			ReasonCode:   string(e.ReasonCode),
			PickupTsRaw:  e.PickupTsRaw,
			DropoffTsRaw: e.DropoffTsRaw,
			PickupLat:    e.PickupLat,
			PickupLon:    e.PickupLon,
			DropoffLat:   e.DropoffLat,
			DropoffLon:   e.DropoffLon,
			DistanceRaw:  e.DistanceRaw,
			FareRaw:      e.FareRaw,
		}
	}
	res := r.db.WithContext(ctx).CreateInBatches(&rows, sqliteBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("repo.SQLiteExclusionRepo.InsertBatch: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sqliteExclusionRepo) ListByRunPaged(ctx context.Context, runID uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&sqliteExclusion{}).Where("run_id = ?", runID.String()).Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteExclusionRepo.ListByRunPaged: count: %w", err)
	}

	var rows []sqliteExclusion
	err = r.db.WithContext(ctx).Where("run_id = ?", runID.String()).
		Order("id").Limit(p.PerPage).Offset(p.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("repo.SQLiteExclusionRepo.ListByRunPaged: %w", err)
	}
	return sqliteExclusionsToDomain(rows), total, nil
}

func (r *sqliteExclusionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error) {
	var rows []sqliteExclusion
	err := r.db.WithContext(ctx).Where("run_id = ?", runID.String()).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteExclusionRepo.ListByRun: %w", err)
	}
	return sqliteExclusionsToDomain(rows), nil
}

func (r *sqliteExclusionRepo) CountByReason(ctx context.Context, runID uuid.UUID) (map[domain.ReasonCode]int, error) {
	var rows []struct {
		ReasonCode string
		N          int
	}
	err := r.db.WithContext(ctx).Model(&sqliteExclusion{}).
		Select("reason_code, COUNT(*) AS n").
		Where("run_id = ?", runID.String()).
		Group("reason_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteExclusionRepo.CountByReason: %w", err)
	}

	counts := make(map[domain.ReasonCode]int, len(rows))
	for _, row := range rows {
		counts[domain.ReasonCode(row.ReasonCode)] = row.N
	}
	return counts, nil
}

func sqliteExclusionsToDomain(rows []sqliteExclusion) []domain.ExclusionRecord {
	out := make([]domain.ExclusionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
