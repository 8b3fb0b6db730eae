// Package handler implements the HTTP handlers for the taxi pipeline API.
// All handlers are methods on Server. They are split into resource files
// (health.go, trip.go, run.go, export.go) but share the Server struct so they
// can reach its dependencies.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

// TripServicer defines the trip queries the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.StoredTrip, int64, error)
	Summary(ctx context.Context) (domain.TripSummary, error)
}

// RunServicer defines the run queries the handlers depend on.
type RunServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Run, error)
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Run, int64, error)
	ListExclusions(ctx context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.ExclusionRecord, int64, error)
}

// IngestServicer runs the pipeline over an uploaded source.
type IngestServicer interface {
	Ingest(ctx context.Context, source string, src pipeline.Source) (domain.Run, error)
}

// ExportServicer returns the full output of a run.
type ExportServicer interface {
	Trips(ctx context.Context, runID uuid.UUID) ([]domain.EnrichedRecord, error)
	Exclusions(ctx context.Context, runID uuid.UUID) ([]domain.ExclusionRecord, error)
}

// Server holds the services behind every API endpoint.
type Server struct {
	trips  TripServicer
	runs   RunServicer
	ingest IngestServicer
	export ExportServicer
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, runs RunServicer, ingest IngestServicer, export ExportServicer) *Server {
	return &Server{trips: trips, runs: runs, ingest: ingest, export: export}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}

// Register mounts every API route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.GetSummary)
		r.Get("/trips", s.ListTrips)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.CreateRun)
			r.Get("/", s.ListRuns)
			r.Get("/{id}", s.GetRun)
			r.Get("/{id}/exclusions", s.ListRunExclusions)
			r.Get("/{id}/trips", s.ExportRunTrips)
		})
	})
}
