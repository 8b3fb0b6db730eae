package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// TimeLayout formats output timestamps. Fractional seconds appear only when non-zero.
const TimeLayout = "2006-01-02 15:04:05.999999999"

// TripColumns is the cleaned-output header, in order.
var TripColumns = []string{
	"pickup_datetime", "dropoff_datetime",
	"pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon",
	"trip_distance_km", "trip_duration_sec",
	"fare_amount", "tip_amount", "passenger_count", "payment_type",
	"avg_speed_kmh", "fare_per_km", "pickup_hour", "weekday", "is_weekend", "haversine_km",
}

// ExclusionColumns is the exclusion-output header, in order.
var ExclusionColumns = []string{
	"raw_row_id", "reason_code",
	"pickup_ts_raw", "dropoff_ts_raw",
	"pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon",
	"distance_raw", "fare_raw",
}

// TripWriter writes accepted trips as CSV. Call Flush when done.
type TripWriter struct {
	w *csv.Writer
}

// NewTripWriter writes the header to w and returns the writer.
func NewTripWriter(w io.Writer) (*TripWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(TripColumns); err != nil {
		return nil, fmt.Errorf("csvio.NewTripWriter: %w", err)
	}
	return &TripWriter{w: cw}, nil
}

// WriteTrip implements pipeline.TripSink.
func (t *TripWriter) WriteTrip(_ context.Context, rec domain.EnrichedRecord) error {
	if err := t.w.Write(TripRow(rec)); err != nil {
		return fmt.Errorf("csvio.TripWriter.WriteTrip: %w", err)
	}
	return nil
}

// Flush writes buffered rows and reports any earlier write error.
func (t *TripWriter) Flush() error {
	t.w.Flush()
	return t.w.Error()
}

// TripRow renders rec in TripColumns order. Absent values are empty strings.
func TripRow(rec domain.EnrichedRecord) []string {
	weekend := "0"
	if rec.IsWeekend {
		weekend = "1"
	}
	return []string{
		rec.PickupAt.UTC().Format(TimeLayout),
		rec.DropoffAt.UTC().Format(TimeLayout),
		formatFloat(rec.PickupLat),
		formatFloat(rec.PickupLon),
		formatFloat(rec.DropoffLat),
		formatFloat(rec.DropoffLon),
		formatFloat(rec.TripDistanceKm),
		strconv.FormatInt(rec.TripDurationSec, 10),
		formatOptionalFloat(rec.FareAmount),
		formatOptionalFloat(rec.TipAmount),
		formatOptionalInt(rec.PassengerCount),
		formatOptionalString(rec.PaymentType),
		formatFloat(rec.AvgSpeedKmh),
		formatOptionalFloat(rec.FarePerKm),
		strconv.Itoa(rec.PickupHour),
		strconv.Itoa(rec.Weekday),
		weekend,
		formatFloat(rec.HaversineKm),
	}
}

// ExclusionWriter writes exclusions as CSV. Call Flush when done.
type ExclusionWriter struct {
	w *csv.Writer
}

// NewExclusionWriter writes the header to w and returns the writer.
func NewExclusionWriter(w io.Writer) (*ExclusionWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExclusionColumns); err != nil {
		return nil, fmt.Errorf("csvio.NewExclusionWriter: %w", err)
	}
	return &ExclusionWriter{w: cw}, nil
}

// WriteExclusion implements pipeline.ExclusionSink.
func (e *ExclusionWriter) WriteExclusion(_ context.Context, rec domain.ExclusionRecord) error {
	row := []string{
		strconv.FormatInt(rec.RawRowID, 10),
		string(rec.ReasonCode),
		rec.PickupTsRaw,
		rec.DropoffTsRaw,
		rec.PickupLat,
		rec.PickupLon,
		rec.DropoffLat,
		rec.DropoffLon,
		rec.DistanceRaw,
		rec.FareRaw,
	}
	if err := e.w.Write(row); err != nil {
		return fmt.Errorf("csvio.ExclusionWriter.WriteExclusion: %w", err)
	}
	return nil
}

// Flush writes buffered rows and reports any earlier write error.
func (e *ExclusionWriter) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptionalInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatOptionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
