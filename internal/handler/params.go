package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

// bindQuery binds an optional form-style query parameter into dest.
func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

// pageParams reads ?page= and ?per_page=.
func pageParams(r *http.Request) (domain.PaginationParams, error) {
	var page, perPage *int
	if err := bindQuery(r, "page", &page); err != nil {
		return domain.PaginationParams{}, err
	}
	if err := bindQuery(r, "per_page", &perPage); err != nil {
		return domain.PaginationParams{}, err
	}
	return domain.NewPaginationParams(page, perPage), nil
}

// queryTime reads a timestamp parameter. Besides the pickup timestamp
// formats it accepts a bare date, meaning midnight UTC.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	if d, err := time.Parse(time.DateOnly, v); err == nil {
		return &d, nil
	}
	t, err := pipeline.ParseTimestamp(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a timestamp", name, v)
	}
	return &t, nil
}

// tripFilter reads the /api/trips filters.
func tripFilter(r *http.Request) (domain.TripFilter, error) {
	var (
		f   domain.TripFilter
		err error
	)
	if f.Start, err = queryTime(r, "start"); err != nil {
		return f, err
	}
	if f.End, err = queryTime(r, "end"); err != nil {
		return f, err
	}
	if err := bindQuery(r, "min_distance", &f.MinDistance); err != nil {
		return f, err
	}
	if err := bindQuery(r, "max_distance", &f.MaxDistance); err != nil {
		return f, err
	}
	if err := bindQuery(r, "weekend", &f.Weekend); err != nil {
		return f, err
	}
	if v := strings.TrimSpace(r.URL.Query().Get("time_of_day")); v != "" {
		tod := domain.TimeOfDay(strings.ToLower(v))
		f.TimeOfDay = &tod
	}
	return f, nil
}

// runID reads the {id} path parameter.
func runID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q", raw)
	}
	return id, nil
}
