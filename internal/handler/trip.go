package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

type tripResponse struct {
	ID              int64     `json:"id"`
	RunID           uuid.UUID `json:"run_id"`
	PickupDatetime  time.Time `json:"pickup_datetime"`
	DropoffDatetime time.Time `json:"dropoff_datetime"`
	PickupLat       float64   `json:"pickup_lat"`
	PickupLon       float64   `json:"pickup_lon"`
	DropoffLat      float64   `json:"dropoff_lat"`
	DropoffLon      float64   `json:"dropoff_lon"`
	TripDistanceKm  float64   `json:"trip_distance_km"`
	TripDurationSec int64     `json:"trip_duration_sec"`
	FareAmount      *float64  `json:"fare_amount"`
	TipAmount       *float64  `json:"tip_amount"`
	PassengerCount  *int      `json:"passenger_count"`
	PaymentType     *string   `json:"payment_type"`
	AvgSpeedKmh     float64   `json:"avg_speed_kmh"`
	FarePerKm       *float64  `json:"fare_per_km"`
	PickupHour      int       `json:"pickup_hour"`
	Weekday         int       `json:"weekday"`
	IsWeekend       bool      `json:"is_weekend"`
	HaversineKm     float64   `json:"haversine_km"`
}

type pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

type tripListResponse struct {
	Data       []tripResponse `json:"data"`
	Pagination pagination     `json:"pagination"`
}

type summaryResponse struct {
	TotalTrips   int64    `json:"total_trips"`
	AvgSpeedKmh  *float64 `json:"avg_speed_kmh"`
	AvgFarePerKm *float64 `json:"avg_fare_per_km"`
}

// GetSummary handles GET /api/summary.
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.trips.Summary(r.Context())
	if err != nil {
		serviceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalTrips:   sum.TotalTrips,
		AvgSpeedKmh:  round3(sum.AvgSpeedKmh),
		AvgFarePerKm: round3(sum.AvgFarePerKm),
	})
}

// ListTrips handles GET /api/trips.
// Supports the trip filters plus ?page= and ?per_page= (defaults: page=1,
// per_page=100, max=500).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	f, err := tripFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	params, err := pageParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	trips, total, err := s.trips.List(r.Context(), f, params)
	if err != nil {
		serviceError(w, r, err, "")
		return
	}

	data := make([]tripResponse, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, tripListResponse{
		Data:       data,
		Pagination: pagination{Page: params.Page, PerPage: params.PerPage, Total: total},
	})
}

func tripToResponse(t domain.StoredTrip) tripResponse {
	return tripResponse{
		ID:              t.ID,
		RunID:           t.RunID,
		PickupDatetime:  t.PickupAt.UTC(),
		DropoffDatetime: t.DropoffAt.UTC(),
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

func round3(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*1000) / 1000
	return &r
}
