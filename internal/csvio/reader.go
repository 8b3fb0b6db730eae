// Package csvio adapts CSV files to the pipeline: a Source that reads raw
// trip rows under any of the header spellings the TLC and Kaggle exports
// use, and sinks that write the cleaned and exclusion outputs.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// ErrMissingColumns is returned by NewReader when the header lacks a
// column the pipeline cannot do without.
var ErrMissingColumns = errors.New("missing required columns")

// ErrMalformed is returned (wrapped) when the input is not parseable CSV.
var ErrMalformed = errors.New("malformed csv")

type field int

const (
	fieldTripID field = iota
	fieldPickupTs
	fieldDropoffTs
	fieldPickupLat
	fieldPickupLon
	fieldDropoffLat
	fieldDropoffLon
	fieldDistance
	fieldFare
	fieldTip
	fieldPassengers
	fieldPayment
	fieldOverride
	numFields
)

// aliases lists accepted header names per field, in priority order.
var aliases = [numFields][]string{
	fieldTripID:     {"id", "trip_id"},
	fieldPickupTs:   {"tpep_pickup_datetime", "pickup_datetime"},
	fieldDropoffTs:  {"tpep_dropoff_datetime", "dropoff_datetime"},
	fieldPickupLat:  {"pickup_latitude", "pickup_lat"},
	fieldPickupLon:  {"pickup_longitude", "pickup_lon", "pickup_lng"},
	fieldDropoffLat: {"dropoff_latitude", "dropoff_lat"},
	fieldDropoffLon: {"dropoff_longitude", "dropoff_lon", "dropoff_lng"},
	fieldDistance:   {"trip_distance", "distance", kmDistanceColumn},
	fieldFare:       {"fare_amount", "fare", "total_amount"},
	fieldTip:        {"tip_amount", "tip"},
	fieldPassengers: {"passenger_count", "passengers"},
	fieldPayment:    {"payment_type", "payment"},
	fieldOverride:   {"zero_distance_override"},
}

// kmDistanceColumn is the only distance header that names its unit.
const kmDistanceColumn = "trip_distance_km"

var required = []field{fieldPickupTs, fieldDropoffTs, fieldPickupLat, fieldPickupLon, fieldDropoffLat, fieldDropoffLon}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// DefaultUnit is stamped on rows whose distance column does not name a
	// unit. Empty leaves the choice to the pipeline.
	DefaultUnit domain.DistanceUnit
}

// column is one header position feeding a field.
type column struct {
	index int
	km    bool
}

// Reader is a pipeline.Source over CSV input with a header row.
type Reader struct {
	csv     *csv.Reader
	columns [numFields][]column
	unit    domain.DistanceUnit
	row     int64
}

// NewReader reads the header from r and maps it to fields. It returns
// ErrMissingColumns (wrapped) if a timestamp or coordinate column is absent.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csvio.NewReader: %w: empty input", ErrMissingColumns)
		}
		return nil, fmt.Errorf("csvio.NewReader: read header: %w", malformed(err))
	}

	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	rd := &Reader{csv: cr, unit: opts.DefaultUnit}
	for f, names := range aliases {
		for _, name := range names {
			if i, ok := positions[name]; ok {
				rd.columns[f] = append(rd.columns[f], column{index: i, km: name == kmDistanceColumn})
			}
		}
	}

	var missing []string
	for _, f := range required {
		if len(rd.columns[f]) == 0 {
			missing = append(missing, strings.Join(aliases[f], "|"))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csvio.NewReader: %w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return rd, nil
}

// Next implements pipeline.Source. RowID is the 1-based data row number.
func (r *Reader) Next() (domain.RawRecord, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.RawRecord{}, io.EOF
		}
		return domain.RawRecord{}, fmt.Errorf("csvio.Reader.Next: %w", malformed(err))
	}
	r.row++

	out := domain.RawRecord{RowID: r.row}
	get := func(f field) (string, column) {
		for _, c := range r.columns[f] {
			if c.index < len(rec) && strings.TrimSpace(rec[c.index]) != "" {
				return rec[c.index], c
			}
		}
		return "", column{}
	}

	out.TripID, _ = get(fieldTripID)
	out.PickupTs, _ = get(fieldPickupTs)
	out.DropoffTs, _ = get(fieldDropoffTs)
	out.PickupLat, _ = get(fieldPickupLat)
	out.PickupLon, _ = get(fieldPickupLon)
	out.DropoffLat, _ = get(fieldDropoffLat)
	out.DropoffLon, _ = get(fieldDropoffLon)
	out.Fare, _ = get(fieldFare)
	out.Tip, _ = get(fieldTip)
	out.PassengerCount, _ = get(fieldPassengers)
	out.PaymentType, _ = get(fieldPayment)
	out.ZeroDistanceOverride, _ = get(fieldOverride)

	var dc column
	out.Distance, dc = get(fieldDistance)
	if dc.km {
		out.DistanceUnit = domain.UnitKm
	} else {
		out.DistanceUnit = r.unit
	}
	return out, nil
}

// malformed tags csv syntax errors with ErrMalformed and passes others through.
func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return err
}
