// Package domain contains the core data types of the taxi trip pipeline:
// the record shapes a trip passes through, the rule set that judges it, and
// the run, filter and pagination types shared by the repo, service and
// handler layers. It has no dependencies beyond uuid and the geo helpers.
package domain

import (
	"strings"
	"time"
)

// DistanceUnit names the unit a raw distance value is expressed in.
type DistanceUnit string

const (
	UnitMiles DistanceUnit = "miles"
	UnitKm    DistanceUnit = "km"
)

// ParseDistanceUnit accepts "miles"/"mi" and "km"/"kilometers", in any case.
func ParseDistanceUnit(s string) (DistanceUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "miles", "mile", "mi":
		return UnitMiles, true
	case "km", "kilometers", "kilometres":
		return UnitKm, true
	}
	return "", false
}

// RawRecord is one input row exactly as the source delivered it. Every field
// is opaque text; an empty string means the source had no value. Nothing is
// interpreted here so exclusions can echo the input verbatim.
type RawRecord struct {
	// RowID is the 1-based position of the row in its source.
	RowID int64

	TripID         string
	PickupTs       string
	DropoffTs      string
	PickupLat      string
	PickupLon      string
	DropoffLat     string
	DropoffLon     string
	Distance       string
	Fare           string
	Tip            string
	PassengerCount string
	PaymentType    string

	// DistanceUnit is set by the source when it knows what unit Distance is
	// in. Empty means the pipeline default applies.
	DistanceUnit DistanceUnit

	// ZeroDistanceOverride is the raw text of the per-record flag that
	// permits a zero-distance, positive-fare trip.
	ZeroDistanceOverride string
}

// NormalizedRecord is a RawRecord after parsing: UTC timestamps, numeric
// coordinates, distance in kilometres. Nil pointers are absent values.
type NormalizedRecord struct {
	RowID int64

	TripID          *string
	PickupAt        time.Time
	DropoffAt       time.Time
	TripDurationSec int64
	PickupLat       float64
	PickupLon       float64
	DropoffLat      float64
	DropoffLon      float64
	TripDistanceKm  float64
	FareAmount      *float64
	TipAmount       *float64
	PassengerCount  *int
	PaymentType     *string

	ZeroDistanceOverride bool
}

// ValidatedRecord is a NormalizedRecord that passed every rule. The wrapper
// type exists so only the validator can hand records to feature derivation.
type ValidatedRecord struct {
	NormalizedRecord
}

// EnrichedRecord is an accepted trip with its derived features. Its fields
// are the cleaned-output columns, in order.
type EnrichedRecord struct {
	PickupAt        time.Time
	DropoffAt       time.Time
	PickupLat       float64
	PickupLon       float64
	DropoffLat      float64
	DropoffLon      float64
	TripDistanceKm  float64
	TripDurationSec int64
	FareAmount      *float64
	TipAmount       *float64
	PassengerCount  *int
	PaymentType     *string
	AvgSpeedKmh     float64
	FarePerKm       *float64
	PickupHour      int
	Weekday         int
	IsWeekend       bool
	HaversineKm     float64
}
