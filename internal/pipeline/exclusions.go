package pipeline

import (
	"context"
	"fmt"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// ExclusionReporter turns rejections into ExclusionRecords, writes them to
// a sink in arrival order and keeps per-reason counts.
type ExclusionReporter struct {
	sink   ExclusionSink
	counts map[domain.ReasonCode]int
	total  int
}

// NewExclusionReporter returns a reporter writing to sink.
func NewExclusionReporter(sink ExclusionSink) *ExclusionReporter {
	return &ExclusionReporter{sink: sink, counts: make(map[domain.ReasonCode]int)}
}

// Report records that raw was excluded for reason.
func (r *ExclusionReporter) Report(ctx context.Context, raw domain.RawRecord, reason domain.ReasonCode) error {
	if err := r.sink.WriteExclusion(ctx, domain.NewExclusionRecord(raw, reason)); err != nil {
		return fmt.Errorf("pipeline.ExclusionReporter.Report: %w", err)
	}
	r.counts[reason]++
	r.total++
	return nil
}

// Total returns the number of exclusions reported.
func (r *ExclusionReporter) Total() int {
	return r.total
}

// Counts returns a copy of the per-reason counts. Reasons never reported are absent.
func (r *ExclusionReporter) Counts() map[domain.ReasonCode]int {
	out := make(map[domain.ReasonCode]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
