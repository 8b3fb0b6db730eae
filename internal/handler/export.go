package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/csvio"
)

// ExportRunTrips handles GET /api/runs/{id}/trips.
// It returns the run's accepted trips as cleaned-output CSV.
func (s *Server) ExportRunTrips(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	trips, err := s.export.Trips(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "run not found")
		return
	}

	setCSVHeaders(w, fmt.Sprintf("trips-%s.csv", id))
	tw, err := csvio.NewTripWriter(w)
	if err == nil {
		for _, t := range trips {
			if err = tw.WriteTrip(r.Context(), t); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = tw.Flush()
	}
	if err != nil {
		// Headers are already sent; all that is left is to log.
		slog.ErrorContext(r.Context(), "write trips csv", "run_id", id, "error", err)
	}
}

// exportExclusions writes every exclusion of a run as exclusion-output CSV.
func (s *Server) exportExclusions(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	recs, err := s.export.Exclusions(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "run not found")
		return
	}

	setCSVHeaders(w, fmt.Sprintf("exclusions-%s.csv", id))
	ew, err := csvio.NewExclusionWriter(w)
	if err == nil {
		for _, rec := range recs {
			if err = ew.WriteExclusion(r.Context(), rec); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = ew.Flush()
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "write exclusions csv", "run_id", id, "error", err)
	}
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}
