package pipeline

import (
	"github.com/pkordes/nyc-taxi/internal/domain"
)

// Validator applies the rule set to normalized records. Rules run in a fixed
// order and the first one that fails decides the reason code.
type Validator struct {
	rules domain.RuleSet
}

// NewValidator returns a Validator for rules.
func NewValidator(rules domain.RuleSet) *Validator {
	return &Validator{rules: rules}
}

// Validate returns the record as a ValidatedRecord, or a
// *domain.RejectionError naming the first rule it breaks.
func (v *Validator) Validate(n domain.NormalizedRecord) (domain.ValidatedRecord, error) {
	r := v.rules

	if n.PickupAt.After(n.DropoffAt) {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonInvalidTimeOrder,
			"pickup %s after dropoff %s", n.PickupAt, n.DropoffAt)
	}
	if n.TripDurationSec <= 0 {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonNonPositiveDuration,
			"duration %ds", n.TripDurationSec)
	}
	if !r.Box.Contains(n.PickupLat, n.PickupLon) {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonPickupOutOfBounds,
			"pickup (%v, %v) outside bounding box", n.PickupLat, n.PickupLon)
	}
	if !r.Box.Contains(n.DropoffLat, n.DropoffLon) {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonDropoffOutOfBounds,
			"dropoff (%v, %v) outside bounding box", n.DropoffLat, n.DropoffLon)
	}
	if n.TripDistanceKm < 0 {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonNegativeDistance,
			"distance %v km", n.TripDistanceKm)
	}
	if speed := AvgSpeedKmh(n.TripDistanceKm, n.TripDurationSec); speed > r.MaxSpeedKmh {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonSpeedTooHigh,
			"average speed %v km/h above %v", speed, r.MaxSpeedKmh)
	}
	if n.FareAmount != nil && (*n.FareAmount < r.MinFare || *n.FareAmount > r.MaxFare) {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonFareOutOfRange,
			"fare %v outside [%v, %v]", *n.FareAmount, r.MinFare, r.MaxFare)
	}
	if n.TipAmount != nil && *n.TipAmount < 0 {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonNegativeTip,
			"tip %v", *n.TipAmount)
	}
	if n.TripDistanceKm == 0 && n.FareAmount != nil && *n.FareAmount > 0 && !n.ZeroDistanceOverride {
		return domain.ValidatedRecord{}, domain.Reject(domain.ReasonZeroDistancePositiveFare,
			"fare %v for zero distance", *n.FareAmount)
	}

	return domain.ValidatedRecord{NormalizedRecord: n}, nil
}

// AvgSpeedKmh is distance over duration in km/h. Multiplying before dividing
// keeps integral boundary cases exact (12 km in 360 s is 120, not 120.00000000000001).
// durationSec must be positive.
func AvgSpeedKmh(distanceKm float64, durationSec int64) float64 {
	return distanceKm * 3600 / float64(durationSec)
}
