package pipeline

import (
	"time"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/geo"
)

// Enrich derives the output features of an accepted trip. It is a pure
// function of its inputs.
func Enrich(rules domain.RuleSet, v domain.ValidatedRecord) domain.EnrichedRecord {
	pickup := v.PickupAt.UTC()

	out := domain.EnrichedRecord{
		PickupAt:        pickup,
		DropoffAt:       v.DropoffAt.UTC(),
		TripDurationSec: v.TripDurationSec,
		PickupLat:       v.PickupLat,
		PickupLon:       v.PickupLon,
		DropoffLat:      v.DropoffLat,
		DropoffLon:      v.DropoffLon,
		TripDistanceKm:  v.TripDistanceKm,
		FareAmount:      v.FareAmount,
		TipAmount:       v.TipAmount,
		PassengerCount:  v.PassengerCount,
		PaymentType:     v.PaymentType,
		AvgSpeedKmh:     AvgSpeedKmh(v.TripDistanceKm, v.TripDurationSec),
		PickupHour:      pickup.Hour(),
		Weekday:         isoWeekday(pickup.Weekday()),
		HaversineKm:     geo.HaversineKm(v.PickupLat, v.PickupLon, v.DropoffLat, v.DropoffLon),
	}
	out.IsWeekend = out.Weekday >= 5

	if v.FareAmount != nil {
		fpk := *v.FareAmount / (v.TripDistanceKm + rules.FarePerKmEpsilon)
		out.FarePerKm = &fpk
	}
	return out
}

// isoWeekday maps time.Weekday (Sunday=0) to Monday=0 .. Sunday=6.
func isoWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
