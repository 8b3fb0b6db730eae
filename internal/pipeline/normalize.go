package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/geo"
)

// Normalizer turns RawRecords into NormalizedRecords. It is stateless and
// safe for concurrent use.
type Normalizer struct {
	rules       domain.RuleSet
	defaultUnit domain.DistanceUnit
}

// NewNormalizer returns a Normalizer that converts distances with rules and
// assumes defaultUnit for records whose source did not name a unit.
func NewNormalizer(rules domain.RuleSet, defaultUnit domain.DistanceUnit) *Normalizer {
	if defaultUnit == "" {
		defaultUnit = domain.UnitMiles
	}
	return &Normalizer{rules: rules, defaultUnit: defaultUnit}
}

// Normalize parses raw. Failures are *domain.RejectionError with reason
// ParseError (missing or unparseable required field) or BadNumeric
// (present but not a finite number).
func (n *Normalizer) Normalize(raw domain.RawRecord) (domain.NormalizedRecord, error) {
	out := domain.NormalizedRecord{RowID: raw.RowID}

	var err error
	if out.PickupAt, err = parseRequiredTime("pickup_datetime", raw.PickupTs); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if out.DropoffAt, err = parseRequiredTime("dropoff_datetime", raw.DropoffTs); err != nil {
		return domain.NormalizedRecord{}, err
	}
	out.TripDurationSec = wholeSeconds(out.PickupAt, out.DropoffAt)

	coords := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"pickup_lat", raw.PickupLat, &out.PickupLat},
		{"pickup_lon", raw.PickupLon, &out.PickupLon},
		{"dropoff_lat", raw.DropoffLat, &out.DropoffLat},
		{"dropoff_lon", raw.DropoffLon, &out.DropoffLon},
	}
	for _, c := range coords {
		v, err := parseOptionalFloat(c.name, c.raw)
		if err != nil {
			return domain.NormalizedRecord{}, err
		}
		if v == nil {
			return domain.NormalizedRecord{}, domain.Reject(domain.ReasonParseError, "%s is missing", c.name)
		}
		*c.dst = *v
	}

	distance, err := parseOptionalFloat("trip_distance", raw.Distance)
	if err != nil {
		return domain.NormalizedRecord{}, err
	}
	if distance == nil {
		out.TripDistanceKm = geo.HaversineKm(out.PickupLat, out.PickupLon, out.DropoffLat, out.DropoffLon)
	} else {
		unit := raw.DistanceUnit
		if unit == "" {
			unit = n.defaultUnit
		}
		switch unit {
		case domain.UnitKm:
			out.TripDistanceKm = *distance
		case domain.UnitMiles:
			out.TripDistanceKm = *distance * n.rules.MilesToKm
		default:
			return domain.NormalizedRecord{}, domain.Reject(domain.ReasonParseError, "unknown distance unit %q", string(unit))
		}
		if math.IsInf(out.TripDistanceKm, 0) {
			return domain.NormalizedRecord{}, domain.Reject(domain.ReasonBadNumeric, "trip_distance %q overflows in km", raw.Distance)
		}
	}

	if out.FareAmount, err = parseOptionalFloat("fare_amount", raw.Fare); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if out.TipAmount, err = parseOptionalFloat("tip_amount", raw.Tip); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if out.PassengerCount, err = parseOptionalInt("passenger_count", raw.PassengerCount); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if out.PaymentType = optionalString(raw.PaymentType); out.PaymentType != nil {
		*out.PaymentType = domain.SafeText(*out.PaymentType)
	}
	out.TripID = optionalString(raw.TripID)

	if out.ZeroDistanceOverride, err = parseFlag("zero_distance_override", raw.ZeroDistanceOverride); err != nil {
		return domain.NormalizedRecord{}, err
	}

	return out, nil
}

// isNull reports whether s is one of the tokens sources use for "no value".
func isNull(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == `\N` || strings.EqualFold(s, "null")
}

func parseRequiredTime(field, s string) (time.Time, error) {
	if isNull(s) {
		return time.Time{}, domain.Reject(domain.ReasonParseError, "%s is missing", field)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, domain.Reject(domain.ReasonParseError, "%s: %v", field, err)
	}
	return t, nil
}

func parseOptionalFloat(field, s string) (*float64, error) {
	if isNull(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, domain.Reject(domain.ReasonBadNumeric, "%s: %q is not a finite number", field, s)
	}
	return &v, nil
}

// parseOptionalInt accepts integers and integral floats such as "2.0".
func parseOptionalInt(field, s string) (*int, error) {
	if isNull(s) {
		return nil, nil
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return &v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, domain.Reject(domain.ReasonBadNumeric, "%s: %q is not an integer", field, s)
	}
	v := int(f)
	return &v, nil
}

func parseFlag(field, s string) (bool, error) {
	if isNull(s) {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, nil
	case "0", "false", "f", "no", "n":
		return false, nil
	}
	return false, domain.Reject(domain.ReasonParseError, "%s: %q is not a boolean", field, s)
}

func optionalString(s string) *string {
	if isNull(s) {
		return nil
	}
	v := strings.TrimSpace(s)
	return &v
}

// wholeSeconds is to - from truncated toward zero. Unlike time.Time.Sub it
// does not saturate for spans beyond about 292 years.
func wholeSeconds(from, to time.Time) int64 {
	secs := to.Unix() - from.Unix()
	nsec := to.Nanosecond() - from.Nanosecond()
	switch {
	case secs > 0 && nsec < 0:
		secs--
	case secs < 0 && nsec > 0:
		secs++
	}
	return secs
}
