package pipeline_test

import (
	"github.com/pkordes/nyc-taxi/internal/domain"
)

// ---- fixtures --------------------------------------------------------------

// validRaw is a Midtown trip that passes every rule: 2.1 km in 455 s.
func validRaw() domain.RawRecord {
	return domain.RawRecord{
		RowID:          1,
		PickupTs:       "2016-03-14T17:24:55Z",
		DropoffTs:      "2016-03-14T17:32:30Z",
		PickupLat:      "40.7679",
		PickupLon:      "-73.9822",
		DropoffLat:     "40.7390",
		DropoffLon:     "-73.9999",
		Distance:       "2.1",
		DistanceUnit:   domain.UnitKm,
		Fare:           "9.5",
		Tip:            "1.5",
		PassengerCount: "1",
		PaymentType:    "1",
	}
}

func ptr[T any](v T) *T { return &v }
