package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/geo"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

func TestEnrich_DerivedFields(t *testing.T) {
	v := validated()

	got := pipeline.Enrich(domain.RulesV1, v)

	assert.Equal(t, pipeline.AvgSpeedKmh(2.1, 455), got.AvgSpeedKmh)
	assert.Equal(t, 17, got.PickupHour)
	assert.Equal(t, 0, got.Weekday) // 2016-03-14 was a Monday
	assert.False(t, got.IsWeekend)
	assert.Equal(t, geo.HaversineKm(v.PickupLat, v.PickupLon, v.DropoffLat, v.DropoffLon), got.HaversineKm)
	require.NotNil(t, got.FarePerKm)
	assert.Equal(t, 9.5/(2.1+1e-6), *got.FarePerKm)

	// Reported distance is never replaced by the haversine cross-check.
	assert.Equal(t, 2.1, got.TripDistanceKm)
}

func TestEnrich_Weekdays(t *testing.T) {
	monday := time.Date(2016, 3, 14, 10, 0, 0, 0, time.UTC)
	for offset, want := range []int{0, 1, 2, 3, 4, 5, 6} {
		v := validated()
		v.PickupAt = monday.AddDate(0, 0, offset)
		v.DropoffAt = v.PickupAt.Add(455 * time.Second)

		got := pipeline.Enrich(domain.RulesV1, v)

		assert.Equal(t, want, got.Weekday)
		assert.Equal(t, want >= 5, got.IsWeekend)
	}
}

func TestEnrich_HourUsesUTC(t *testing.T) {
	v := validated()
	v.PickupAt = time.Date(2016, 3, 14, 23, 30, 0, 0, time.FixedZone("EDT", -4*3600))

	got := pipeline.Enrich(domain.RulesV1, v)

	assert.Equal(t, 3, got.PickupHour)
	assert.Equal(t, 1, got.Weekday) // Tuesday in UTC
}

func TestEnrich_NilFareGivesNilFarePerKm(t *testing.T) {
	v := validated()
	v.FareAmount = nil

	assert.Nil(t, pipeline.Enrich(domain.RulesV1, v).FarePerKm)
}

func TestEnrich_ZeroDistanceFareStaysFinite(t *testing.T) {
	v := validated()
	v.TripDistanceKm = 0
	v.FareAmount = ptr(0.0)

	got := pipeline.Enrich(domain.RulesV1, v)

	require.NotNil(t, got.FarePerKm)
	assert.Equal(t, 0.0, *got.FarePerKm)
	assert.Equal(t, 0.0, got.AvgSpeedKmh)
}

func TestEnrich_Deterministic(t *testing.T) {
	v := validated()
	first := pipeline.Enrich(domain.RulesV1, v)
	for range 100 {
		assert.Equal(t, first, pipeline.Enrich(domain.RulesV1, v))
	}
}
