package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

// validNormalized returns a record that passes every rule.
func validNormalized() domain.NormalizedRecord {
	pickup := time.Date(2016, 3, 14, 17, 24, 55, 0, time.UTC)
	return domain.NormalizedRecord{
		RowID:           1,
		PickupAt:        pickup,
		DropoffAt:       pickup.Add(455 * time.Second),
		TripDurationSec: 455,
		PickupLat:       40.7679,
		PickupLon:       -73.9822,
		DropoffLat:      40.7390,
		DropoffLon:      -73.9999,
		TripDistanceKm:  2.1,
		FareAmount:      ptr(9.5),
		TipAmount:       ptr(1.5),
		PassengerCount:  ptr(1),
	}
}

func validate(n domain.NormalizedRecord) error {
	_, err := pipeline.NewValidator(domain.RulesV1).Validate(n)
	return err
}

// withTrip sets distance and duration together, keeping the timestamps consistent.
func withTrip(n domain.NormalizedRecord, km float64, sec int64) domain.NormalizedRecord {
	n.TripDistanceKm = km
	n.TripDurationSec = sec
	n.DropoffAt = n.PickupAt.Add(time.Duration(sec) * time.Second)
	return n
}

func TestValidate_Valid(t *testing.T) {
	got, err := pipeline.NewValidator(domain.RulesV1).Validate(validNormalized())

	require.NoError(t, err)
	assert.Equal(t, validNormalized(), got.NormalizedRecord)
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n domain.NormalizedRecord) domain.NormalizedRecord
		want   domain.ReasonCode
	}{
		{"pickup after dropoff", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.DropoffAt = n.PickupAt.Add(-time.Minute)
			n.TripDurationSec = -60
			return n
		}, domain.ReasonInvalidTimeOrder},
		{"zero duration", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.DropoffAt = n.PickupAt
			n.TripDurationSec = 0
			return n
		}, domain.ReasonNonPositiveDuration},
		{"pickup outside box", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.PickupLat = 0
			return n
		}, domain.ReasonPickupOutOfBounds},
		{"dropoff outside box", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.DropoffLon = -75
			return n
		}, domain.ReasonDropoffOutOfBounds},
		{"negative distance", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.TripDistanceKm = -0.1
			return n
		}, domain.ReasonNegativeDistance},
		{"too fast", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			return withTrip(n, 50, 60)
		}, domain.ReasonSpeedTooHigh},
		{"negative fare", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.FareAmount = ptr(-2.5)
			return n
		}, domain.ReasonFareOutOfRange},
		{"fare above cap", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.FareAmount = ptr(500.01)
			return n
		}, domain.ReasonFareOutOfRange},
		{"negative tip", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.TipAmount = ptr(-1.0)
			return n
		}, domain.ReasonNegativeTip},
		{"zero distance with fare", func(n domain.NormalizedRecord) domain.NormalizedRecord {
			n.TripDistanceKm = 0
			n.FareAmount = ptr(12.0)
			return n
		}, domain.ReasonZeroDistancePositiveFare},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireReason(t, validate(tt.mutate(validNormalized())), tt.want)
		})
	}
}

// The first failing rule decides the reason, even when later rules fail too.
func TestValidate_FirstFailureWins(t *testing.T) {
	n := validNormalized()
	n.PickupLat = 0            // rule 3
	n.TripDistanceKm = -1      // rule 5
	n.FareAmount = ptr(1000.0) // rule 7
	n.TipAmount = ptr(-1.0)    // rule 8

	requireReason(t, validate(n), domain.ReasonPickupOutOfBounds)
}

// ---- boundaries ------------------------------------------------------------

func TestValidate_BoundingBoxEdgeInclusive(t *testing.T) {
	n := validNormalized()
	n.PickupLat = 40.4774
	n.PickupLon = -73.9822
	n.DropoffLat = 40.4800
	n.DropoffLon = -73.9822
	n = withTrip(n, 0.3, 120)
	assert.NoError(t, validate(n))

	n.PickupLat = 40.47739999
	requireReason(t, validate(n), domain.ReasonPickupOutOfBounds)
}

func TestValidate_SpeedCapInclusive(t *testing.T) {
	// 12 km in 6 minutes is exactly 120 km/h.
	assert.NoError(t, validate(withTrip(validNormalized(), 12, 360)))

	// 12.1 km in 6 minutes is 121 km/h.
	requireReason(t, validate(withTrip(validNormalized(), 12.1, 360)), domain.ReasonSpeedTooHigh)
}

func TestValidate_FareBoundsInclusive(t *testing.T) {
	for _, fare := range []float64{0, 500} {
		n := validNormalized()
		n.FareAmount = ptr(fare)
		assert.NoError(t, validate(n), "fare %v", fare)
	}
}

// ---- nulls and overrides ---------------------------------------------------

func TestValidate_NullOptionalsVacuouslyPass(t *testing.T) {
	n := validNormalized()
	n.FareAmount = nil
	n.TipAmount = nil
	n.PassengerCount = nil
	n.TripDistanceKm = 0

	assert.NoError(t, validate(n))
}

func TestValidate_ZeroDistanceOverride(t *testing.T) {
	n := validNormalized()
	n.TripDistanceKm = 0
	n.FareAmount = ptr(12.0)
	n.ZeroDistanceOverride = true

	assert.NoError(t, validate(n))
}

func TestValidate_ZeroDistanceZeroFare(t *testing.T) {
	n := validNormalized()
	n.TripDistanceKm = 0
	n.FareAmount = ptr(0.0)

	assert.NoError(t, validate(n))
}

func TestAvgSpeedKmh(t *testing.T) {
	assert.Equal(t, 120.0, pipeline.AvgSpeedKmh(12, 360))
	assert.InDelta(t, 16.615, pipeline.AvgSpeedKmh(2.1, 455), 0.001)
}
