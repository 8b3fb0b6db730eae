package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/csvio"
	"github.com/pkordes/nyc-taxi/internal/domain"
)

type runResponse struct {
	ID               uuid.UUID      `json:"id"`
	RuleVersion      string         `json:"rule_version"`
	Source           string         `json:"source"`
	Status           string         `json:"status"`
	TotalRows        int            `json:"total_rows"`
	AcceptedRows     int            `json:"accepted_rows"`
	ExcludedRows     int            `json:"excluded_rows"`
	Error            string         `json:"error,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at"`
	ExcludedByReason map[string]int `json:"excluded_by_reason,omitempty"`
}

type runListResponse struct {
	Data       []runResponse `json:"data"`
	Pagination pagination    `json:"pagination"`
}

type exclusionResponse struct {
	RawRowID     int64  `json:"raw_row_id"`
	ReasonCode   string `json:"reason_code"`
	PickupTsRaw  string `json:"pickup_ts_raw"`
	DropoffTsRaw string `json:"dropoff_ts_raw"`
	PickupLat    string `json:"pickup_lat"`
	PickupLon    string `json:"pickup_lon"`
	DropoffLat   string `json:"dropoff_lat"`
	DropoffLon   string `json:"dropoff_lon"`
	DistanceRaw  string `json:"distance_raw"`
	FareRaw      string `json:"fare_raw"`
}

type exclusionListResponse struct {
	Data       []exclusionResponse `json:"data"`
	Pagination pagination          `json:"pagination"`
}

// CreateRun handles POST /api/runs. The request body is a CSV file with a
// header row; ?source= labels the run and ?distance_unit= (miles|km) sets the
// unit of a plain distance column.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		source = "upload"
	}

	var opts csvio.ReaderOptions
	if v := strings.TrimSpace(r.URL.Query().Get("distance_unit")); v != "" {
		unit, ok := domain.ParseDistanceUnit(v)
		if !ok {
			badRequest(w, "invalid distance_unit: must be miles or km")
			return
		}
		opts.DefaultUnit = unit
	}

	reader, err := csvio.NewReader(r.Body, opts)
	if err != nil {
		uploadError(w, r, err)
		return
	}

	run, err := s.ingest.Ingest(r.Context(), source, reader)
	if err != nil {
		uploadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, runToResponse(run))
}

// uploadError maps a failure reading or ingesting an upload.
func uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
	case errors.Is(err, csvio.ErrMissingColumns), errors.Is(err, csvio.ErrMalformed):
		badRequest(w, err.Error())
	default:
		serviceError(w, r, err, "")
	}
}

// ListRuns handles GET /api/runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	params, err := pageParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	runs, total, err := s.runs.List(r.Context(), params)
	if err != nil {
		serviceError(w, r, err, "")
		return
	}
	data := make([]runResponse, len(runs))
	for i, run := range runs {
		data[i] = runToResponse(run)
	}
	writeJSON(w, http.StatusOK, runListResponse{
		Data:       data,
		Pagination: pagination{Page: params.Page, PerPage: params.PerPage, Total: total},
	})
}

// GetRun handles GET /api/runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	run, err := s.runs.GetByID(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// ListRunExclusions handles GET /api/runs/{id}/exclusions.
// Use ?format=csv to download every exclusion; default is a JSON page.
func (s *Server) ListRunExclusions(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		s.exportExclusions(w, r, id)
		return
	}

	params, err := pageParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	recs, total, err := s.runs.ListExclusions(r.Context(), id, params)
	if err != nil {
		serviceError(w, r, err, "run not found")
		return
	}
	data := make([]exclusionResponse, len(recs))
	for i, rec := range recs {
		data[i] = exclusionToResponse(rec)
	}
	writeJSON(w, http.StatusOK, exclusionListResponse{
		Data:       data,
		Pagination: pagination{Page: params.Page, PerPage: params.PerPage, Total: total},
	})
}

func runToResponse(run domain.Run) runResponse {
	out := runResponse{
		ID:           run.ID,
		RuleVersion:  run.RuleVersion,
		Source:       run.Source,
		Status:       string(run.Status),
		TotalRows:    run.TotalRows,
		AcceptedRows: run.AcceptedRows,
		ExcludedRows: run.ExcludedRows,
		Error:        run.Error,
		StartedAt:    run.StartedAt.UTC(),
	}
	if run.FinishedAt != nil {
		f := run.FinishedAt.UTC()
		out.FinishedAt = &f
	}
	if run.ExcludedByReason != nil {
		out.ExcludedByReason = make(map[string]int, len(run.ExcludedByReason))
		for reason, n := range run.ExcludedByReason {
			out.ExcludedByReason[string(reason)] = n
		}
	}
	return out
}

func exclusionToResponse(rec domain.ExclusionRecord) exclusionResponse {
	return exclusionResponse{
		RawRowID:     rec.RawRowID,
		ReasonCode:   string(rec.ReasonCode),
		PickupTsRaw:  rec.PickupTsRaw,
		DropoffTsRaw: rec.DropoffTsRaw,
		PickupLat:    rec.PickupLat,
		PickupLon:    rec.PickupLon,
		DropoffLat:   rec.DropoffLat,
		DropoffLon:   rec.DropoffLon,
		DistanceRaw:  rec.DistanceRaw,
		FareRaw:      rec.FareRaw,
	}
}
