package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/handler"
	"github.com/pkordes/nyc-taxi/internal/middleware"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

// Test doubles for the handler's service interfaces.
// Set only the method fields your test needs.

type mockTripServicer struct {
	list    func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error)
	summary func(ctx context.Context) (domain.TripSummary, error)
}

func (m *mockTripServicer) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error) {
	return m.list(ctx, f, p)
}
func (m *mockTripServicer) Summary(ctx context.Context) (domain.TripSummary, error) {
	return m.summary(ctx)
}

type mockRunServicer struct {
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Run, error)
	list           func(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error)
	listExclusions func(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error)
}

func (m *mockRunServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	return m.getByID(ctx, id)
}
func (m *mockRunServicer) List(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error) {
	return m.list(ctx, p)
}
func (m *mockRunServicer) ListExclusions(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error) {
	return m.listExclusions(ctx, id, p)
}

type mockIngestServicer struct {
	ingest func(ctx context.Context, source string, src pipeline.Source) (domain.Run, error)
}

func (m *mockIngestServicer) Ingest(ctx context.Context, source string, src pipeline.Source) (domain.Run, error) {
	return m.ingest(ctx, source, src)
}

type mockExportServicer struct {
	trips      func(ctx context.Context, runID uuid.UUID) ([]domain.EnrichedRecord, error)
	exclusions func(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error)
}

func (m *mockExportServicer) Trips(ctx context.Context, runID uuid.UUID) ([]domain.EnrichedRecord, error) {
	return m.trips(ctx, runID)
}
func (m *mockExportServicer) Exclusions(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error) {
	return m.exclusions(ctx, runID)
}

// compile-time checks: mocks must satisfy the handler interfaces.
var (
	_ handler.TripServicer   = (*mockTripServicer)(nil)
	_ handler.RunServicer    = (*mockRunServicer)(nil)
	_ handler.IngestServicer = (*mockIngestServicer)(nil)
	_ handler.ExportServicer = (*mockExportServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

// services groups the mocks; nil fields are never called by the test.
type services struct {
	trips  *mockTripServicer
	runs   *mockRunServicer
	ingest *mockIngestServicer
	export *mockExportServicer
}

const testUploadLimit = 1 << 20

// newHTTPHandler wires a Server with the given mocks into a chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(s services) http.Handler {
	srv := handler.NewServer(s.trips, s.runs, s.ingest, s.export)
	r := chi.NewRouter()
	r.Use(middleware.NewMaxBodySizeHandler(testUploadLimit))
	srv.Register(r)
	return r
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func ptr[T any](v T) *T { return &v }
