package pipeline

import (
	"context"
	"io"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// SliceSource serves records from memory.
type SliceSource struct {
	records []domain.RawRecord
	pos     int
}

// NewSliceSource returns a Source over records. RowIDs that are zero are
// filled with the 1-based position.
func NewSliceSource(records []domain.RawRecord) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements Source.
func (s *SliceSource) Next() (domain.RawRecord, error) {
	if s.pos >= len(s.records) {
		return domain.RawRecord{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	if rec.RowID == 0 {
		rec.RowID = int64(s.pos)
	}
	return rec, nil
}

// MemorySink collects both outputs in memory.
type MemorySink struct {
	Trips      []domain.EnrichedRecord
	Exclusions []domain.ExclusionRecord
}

// WriteTrip implements TripSink.
func (m *MemorySink) WriteTrip(_ context.Context, rec domain.EnrichedRecord) error {
	m.Trips = append(m.Trips, rec)
	return nil
}

// WriteExclusion implements ExclusionSink.
func (m *MemorySink) WriteExclusion(_ context.Context, rec domain.ExclusionRecord) error {
	m.Exclusions = append(m.Exclusions, rec)
	return nil
}
