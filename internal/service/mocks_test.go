package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/repo"
	"github.com/pkordes/nyc-taxi/internal/service"
)

// Hand-written test doubles: each method is a function field, set only the
// ones your test needs.

type mockRunRepo struct {
	create    func(ctx context.Context, run domain.Run) (domain.Run, error)
	finish    func(ctx context.Context, run domain.Run) (domain.Run, error)
	getByID   func(ctx context.Context, id uuid.UUID) (domain.Run, error)
	listPaged func(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error)
}

func (m *mockRunRepo) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	return m.create(ctx, run)
}
func (m *mockRunRepo) Finish(ctx context.Context, run domain.Run) (domain.Run, error) {
	return m.finish(ctx, run)
}
func (m *mockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	return m.getByID(ctx, id)
}
func (m *mockRunRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error) {
	return m.listPaged(ctx, p)
}

type mockTripRepo struct {
	insertBatch func(ctx context.Context, runID uuid.UUID, trips []domain.EnrichedRecord) (int64, error)
	listPaged   func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error)
	listByRun   func(ctx context.Context, runID uuid.UUID) ([]domain.StoredTrip, error)
	summary     func(ctx context.Context) (domain.TripSummary, error)
}

func (m *mockTripRepo) InsertBatch(ctx context.Context, runID uuid.UUID, trips []domain.EnrichedRecord) (int64, error) {
	return m.insertBatch(ctx, runID, trips)
}
func (m *mockTripRepo) ListPaged(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error) {
	return m.listPaged(ctx, f, p)
}
func (m *mockTripRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StoredTrip, error) {
	return m.listByRun(ctx, runID)
}
func (m *mockTripRepo) Summary(ctx context.Context) (domain.TripSummary, error) {
	return m.summary(ctx)
}

type mockExclusionRepo struct {
	insertBatch    func(ctx context.Context, runID uuid.UUID, recs []domain.ExclusionRecord) (int64, error)
	listByRunPaged func(ctx context.Context, runID uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error)
	listByRun      func(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error)
	countByReason  func(ctx context.Context, runID uuid.UUID) (map[domain.ReasonCode]int, error)
}

func (m *mockExclusionRepo) InsertBatch(ctx context.Context, runID uuid.UUID, recs []domain.ExclusionRecord) (int64, error) {
	return m.insertBatch(ctx, runID, recs)
}
func (m *mockExclusionRepo) ListByRunPaged(ctx context.Context, runID uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error) {
	return m.listByRunPaged(ctx, runID, p)
}
func (m *mockExclusionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error) {
	return m.listByRun(ctx, runID)
}
func (m *mockExclusionRepo) CountByReason(ctx context.Context, runID uuid.UUID) (map[domain.ReasonCode]int, error) {
	return m.countByReason(ctx, runID)
}

type mockNotifier struct {
	runCompleted func(ctx context.Context, run domain.Run) error
}

func (m *mockNotifier) RunCompleted(ctx context.Context, run domain.Run) error {
	return m.runCompleted(ctx, run)
}

// recordingMetrics counts calls instead of exporting anything.
type recordingMetrics struct {
	mu       sync.Mutex
	observed []domain.Run
	failed   int
}

func (m *recordingMetrics) ObserveRun(run domain.Run, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, run)
}

func (m *recordingMetrics) RunFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

// compile-time checks: mocks must satisfy the interfaces they stand in for.
var (
	_ repo.RunRepo          = (*mockRunRepo)(nil)
	_ repo.TripRepo         = (*mockTripRepo)(nil)
	_ repo.ExclusionRepo    = (*mockExclusionRepo)(nil)
	_ service.RunNotifier   = (*mockNotifier)(nil)
	_ service.IngestMetrics = (*recordingMetrics)(nil)
)

func ptr[T any](v T) *T { return &v }
