package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
)

// ---- test doubles ----------------------------------------------------------

// failingSource returns n records from records and then err.
type failingSource struct {
	records []domain.RawRecord
	err     error
}

func (s *failingSource) Next() (domain.RawRecord, error) {
	if len(s.records) == 0 {
		return domain.RawRecord{}, s.err
	}
	r := s.records[0]
	s.records = s.records[1:]
	return r, nil
}

// failingSink fails every trip write.
type failingSink struct {
	pipeline.MemorySink
}

func (f *failingSink) WriteTrip(context.Context, domain.EnrichedRecord) error {
	return errors.New("disk full")
}

// ---- helpers ---------------------------------------------------------------

func run(t *testing.T, p *pipeline.Pipeline, records []domain.RawRecord) (domain.RunSummary, *pipeline.MemorySink) {
	t.Helper()
	sink := &pipeline.MemorySink{}
	summary, err := p.Run(context.Background(), pipeline.NewSliceSource(records), sink, sink)
	require.NoError(t, err)
	return summary, sink
}

func newPipeline(workers int) *pipeline.Pipeline {
	return pipeline.New(domain.RulesV1, pipeline.Options{Workers: workers, ChunkSize: 8})
}

// mixedBatch returns a batch with a known outcome for every record.
func mixedBatch() []domain.RawRecord {
	var out []domain.RawRecord
	add := func(mutate func(r *domain.RawRecord)) {
		r := validRaw()
		r.RowID = int64(len(out) + 1)
		r.TripID = fmt.Sprintf("trip-%d", len(out)+1)
		mutate(&r)
		out = append(out, r)
	}

	add(func(r *domain.RawRecord) {})                                                    // accepted
	add(func(r *domain.RawRecord) { r.PickupTs = "nope" })                               // ParseError
	add(func(r *domain.RawRecord) { r.Fare = "abc" })                                    // BadNumeric
	add(func(r *domain.RawRecord) { r.PickupTs, r.DropoffTs = r.DropoffTs, r.PickupTs }) // InvalidTimeOrder
	add(func(r *domain.RawRecord) { r.DropoffTs = r.PickupTs })                          // NonPositiveDuration
	add(func(r *domain.RawRecord) { r.PickupLat = "40.47739999" })                       // PickupOutOfBounds
	add(func(r *domain.RawRecord) { r.DropoffLat = "41.5" })                             // DropoffOutOfBounds
	add(func(r *domain.RawRecord) { r.Distance = "-1" })                                 // NegativeDistance
	add(func(r *domain.RawRecord) { r.Distance = "40" })                                 // SpeedTooHigh
	add(func(r *domain.RawRecord) { r.Fare = "750" })                                    // FareOutOfRange
	add(func(r *domain.RawRecord) { r.Tip = "-3" })                                      // NegativeTip
	add(func(r *domain.RawRecord) { r.Distance = "0"; r.Fare = "12.00" })                // ZeroDistancePositiveFare
	add(func(r *domain.RawRecord) { r.TripID = "trip-1"; r.Fare = "20" })                // Duplicate
	add(func(r *domain.RawRecord) {
		r.PickupLat = "40.4774"
		r.DropoffTs = "2016-03-14T18:24:55Z"
		r.Distance = "30"
	}) // accepted
	add(func(r *domain.RawRecord) { r.Distance = "0"; r.Fare = "12"; r.ZeroDistanceOverride = "1" }) // accepted
	return out
}

// ---- scenarios -------------------------------------------------------------

func TestRun_AcceptsValidTrip(t *testing.T) {
	summary, sink := run(t, newPipeline(1), []domain.RawRecord{validRaw()})

	require.Len(t, sink.Trips, 1)
	assert.Empty(t, sink.Exclusions)
	got := sink.Trips[0]
	assert.Equal(t, int64(455), got.TripDurationSec)
	assert.InDelta(t, 16.6, got.AvgSpeedKmh, 0.05)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, "v1", summary.RuleVersion)
}

func TestRun_ZeroDistancePositiveFare(t *testing.T) {
	raw := validRaw()
	raw.Distance = "0"
	raw.Fare = "12.00"

	_, sink := run(t, newPipeline(1), []domain.RawRecord{raw})

	assert.Empty(t, sink.Trips)
	require.Len(t, sink.Exclusions, 1)
	assert.Equal(t, domain.ReasonZeroDistancePositiveFare, sink.Exclusions[0].ReasonCode)
}

func TestRun_DuplicateTripIDKeepsFirst(t *testing.T) {
	first := validRaw()
	first.TripID = "id2875421"
	second := first
	second.RowID = 2
	second.Fare = "30"

	summary, sink := run(t, newPipeline(1), []domain.RawRecord{first, second})

	require.Len(t, sink.Trips, 1)
	assert.Equal(t, 9.5, *sink.Trips[0].FareAmount)
	require.Len(t, sink.Exclusions, 1)
	assert.Equal(t, int64(2), sink.Exclusions[0].RawRowID)
	assert.Equal(t, domain.ReasonDuplicate, sink.Exclusions[0].ReasonCode)
	assert.Equal(t, "30", sink.Exclusions[0].FareRaw)
	assert.Equal(t, 1, summary.ExcludedByReason[domain.ReasonDuplicate])
}

// A rejected record never claims a dedup key; a later valid copy is accepted.
func TestRun_RejectedRecordDoesNotReserveKey(t *testing.T) {
	bad := validRaw()
	bad.TripID = "x"
	bad.Tip = "-1"
	good := validRaw()
	good.TripID = "x"
	good.RowID = 2

	_, sink := run(t, newPipeline(1), []domain.RawRecord{bad, good})

	require.Len(t, sink.Trips, 1)
	require.Len(t, sink.Exclusions, 1)
	assert.Equal(t, domain.ReasonNegativeTip, sink.Exclusions[0].ReasonCode)
}

func TestRun_SpeedBoundary(t *testing.T) {
	exact := validRaw()
	exact.Distance = "12"
	exact.DropoffTs = "2016-03-14T17:30:55Z" // 360 s
	over := exact
	over.RowID = 2
	over.Distance = "12.1"

	_, sink := run(t, newPipeline(1), []domain.RawRecord{exact, over})

	require.Len(t, sink.Trips, 1)
	assert.Equal(t, 120.0, sink.Trips[0].AvgSpeedKmh)
	require.Len(t, sink.Exclusions, 1)
	assert.Equal(t, domain.ReasonSpeedTooHigh, sink.Exclusions[0].ReasonCode)
}

func TestRun_EveryReasonCode(t *testing.T) {
	summary, sink := run(t, newPipeline(4), mixedBatch())

	var reasons []domain.ReasonCode
	for _, e := range sink.Exclusions {
		reasons = append(reasons, e.ReasonCode)
	}
	assert.Equal(t, domain.ReasonCodes, reasons)
	assert.Len(t, sink.Trips, 3)
	for _, rc := range domain.ReasonCodes {
		assert.Equal(t, 1, summary.ExcludedByReason[rc], rc)
	}
}

// ---- properties ------------------------------------------------------------

func TestRun_PartitionCompleteness(t *testing.T) {
	batch := mixedBatch()
	summary, sink := run(t, newPipeline(3), batch)

	assert.Equal(t, len(batch), len(sink.Trips)+len(sink.Exclusions))
	assert.Equal(t, len(batch), summary.Total)
	assert.Equal(t, summary.Total, summary.Accepted+summary.Excluded)
}

func TestRun_ExclusionOrderFollowsInput(t *testing.T) {
	_, sink := run(t, newPipeline(4), mixedBatch())

	for i := 1; i < len(sink.Exclusions); i++ {
		assert.Less(t, sink.Exclusions[i-1].RawRowID, sink.Exclusions[i].RawRowID)
	}
}

func TestRun_ExclusionEchoesRawValues(t *testing.T) {
	raw := validRaw()
	raw.PickupLat = "  not-a-number "
	raw.Distance = "2.1mi"

	_, sink := run(t, newPipeline(1), []domain.RawRecord{raw})

	require.Len(t, sink.Exclusions, 1)
	e := sink.Exclusions[0]
	assert.Equal(t, "  not-a-number ", e.PickupLat)
	assert.Equal(t, "2.1mi", e.DistanceRaw)
	assert.Equal(t, raw.PickupTs, e.PickupTsRaw)
	assert.Equal(t, raw.Fare, e.FareRaw)
}

func TestRun_Idempotent(t *testing.T) {
	p := newPipeline(4)
	batch := mixedBatch()

	s1, first := run(t, p, batch)
	s2, second := run(t, p, batch)

	assert.Equal(t, first, second)
	assert.Equal(t, s1, s2)
}

// Parallel checking must not change what a sequential run produces.
func TestRun_ParallelMatchesSequential(t *testing.T) {
	var batch []domain.RawRecord
	for range 5 {
		batch = append(batch, mixedBatch()...)
	}
	for i := range batch {
		batch[i].RowID = int64(i + 1)
	}

	_, seq := run(t, newPipeline(1), batch)
	_, par := run(t, newPipeline(8), batch)

	assert.Equal(t, seq, par)
}

func TestRun_EmptyInput(t *testing.T) {
	summary, sink := run(t, newPipeline(2), nil)

	assert.Empty(t, sink.Trips)
	assert.Empty(t, sink.Exclusions)
	assert.Equal(t, 0, summary.Total)
}

// ---- structural failures ---------------------------------------------------

func TestRun_SourceErrorIsReturned(t *testing.T) {
	src := &failingSource{records: []domain.RawRecord{validRaw()}, err: errors.New("read tcp: reset")}
	sink := &pipeline.MemorySink{}

	_, err := newPipeline(1).Run(context.Background(), src, sink, sink)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset")
}

func TestRun_EOFEndsRun(t *testing.T) {
	src := &failingSource{records: []domain.RawRecord{validRaw()}, err: io.EOF}
	sink := &pipeline.MemorySink{}

	summary, err := newPipeline(1).Run(context.Background(), src, sink, sink)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted)
}

func TestRun_SinkErrorIsReturned(t *testing.T) {
	sink := &failingSink{}

	_, err := newPipeline(1).Run(context.Background(), pipeline.NewSliceSource([]domain.RawRecord{validRaw()}), sink, sink)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &pipeline.MemorySink{}

	_, err := newPipeline(2).Run(ctx, pipeline.NewSliceSource(mixedBatch()), sink, sink)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Trips)
}
