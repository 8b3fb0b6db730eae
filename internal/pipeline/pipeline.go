// Package pipeline is the cleaning core: it normalizes raw trip rows,
// validates them against a rule set, drops duplicates, derives features and
// reports every exclusion. Nothing here touches a database or the network;
// records come in through a Source and leave through sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

const (
	defaultChunkSize = 1024
	progressEvery    = 10000
)

// Source yields raw records in input order. Next returns io.EOF when the
// input is exhausted; any other error aborts the run.
type Source interface {
	Next() (domain.RawRecord, error)
}

// TripSink receives accepted trips in input order.
type TripSink interface {
	WriteTrip(ctx context.Context, rec domain.EnrichedRecord) error
}

// ExclusionSink receives exclusions in input order.
type ExclusionSink interface {
	WriteExclusion(ctx context.Context, rec domain.ExclusionRecord) error
}

// Options tunes a Pipeline. Zero values pick the defaults.
type Options struct {
	// Workers bounds the goroutines normalizing and validating a chunk.
	Workers int
	// ChunkSize is the number of records read before the parallel stage runs.
	ChunkSize int
	// DefaultUnit applies to records whose source did not name a distance unit.
	DefaultUnit domain.DistanceUnit
	Logger      *slog.Logger
}

// Pipeline runs the cleaning stages over a Source. A Pipeline holds no
// per-run state and may be reused; each Run gets a fresh deduplicator.
type Pipeline struct {
	rules      domain.RuleSet
	normalizer *Normalizer
	validator  *Validator
	workers    int
	chunkSize  int
	log        *slog.Logger
}

// New returns a Pipeline judging records by rules.
func New(rules domain.RuleSet, opts Options) *Pipeline {
	p := &Pipeline{
		rules:      rules,
		normalizer: NewNormalizer(rules, opts.DefaultUnit),
		validator:  NewValidator(rules),
		workers:    max(opts.Workers, 1),
		chunkSize:  opts.ChunkSize,
		log:        opts.Logger,
	}
	if p.chunkSize <= 0 {
		p.chunkSize = defaultChunkSize
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Rules returns the rule set the pipeline applies.
func (p *Pipeline) Rules() domain.RuleSet {
	return p.rules
}

// checked is the outcome of normalize+validate for one record.
type checked struct {
	record domain.ValidatedRecord
	reject *domain.RejectionError
}

// Run consumes src until io.EOF. Every record ends up in exactly one of
// trips or exclusions, in input order. Per-record problems never fail the
// run; a source error, a sink error or a cancelled ctx does, and the summary
// then covers only the records handled before the failure.
func (p *Pipeline) Run(ctx context.Context, src Source, trips TripSink, exclusions ExclusionSink) (domain.RunSummary, error) {
	dedup := NewDeduplicator()
	reporter := NewExclusionReporter(exclusions)
	summary := domain.RunSummary{RuleVersion: p.rules.Version}

	chunk := make([]domain.RawRecord, 0, p.chunkSize)
	results := make([]checked, p.chunkSize)

	for eof := false; !eof; {
		chunk = chunk[:0]
		for len(chunk) < p.chunkSize {
			raw, err := src.Next()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: read: %w", err)
			}
			chunk = append(chunk, raw)
		}

		if err := p.check(ctx, chunk, results[:len(chunk)]); err != nil {
			return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: %w", err)
		}

		for i, raw := range chunk {
			if err := ctx.Err(); err != nil {
				return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: %w", err)
			}

			res := results[i]
			summary.Total++

			switch {
			case res.reject != nil:
				p.log.DebugContext(ctx, "record excluded",
					"row_id", raw.RowID, "reason", res.reject.Reason, "detail", res.reject.Detail)
				if err := reporter.Report(ctx, raw, res.reject.Reason); err != nil {
					return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: %w", err)
				}
			case !dedup.Observe(res.record):
				p.log.DebugContext(ctx, "record excluded", "row_id", raw.RowID, "reason", domain.ReasonDuplicate)
				if err := reporter.Report(ctx, raw, domain.ReasonDuplicate); err != nil {
					return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: %w", err)
				}
			default:
				if err := trips.WriteTrip(ctx, Enrich(p.rules, res.record)); err != nil {
					return p.finish(summary, reporter), fmt.Errorf("pipeline.Run: write trip: %w", err)
				}
				summary.Accepted++
			}

			if summary.Total%progressEvery == 0 {
				p.log.DebugContext(ctx, "pipeline progress",
					"processed", summary.Total, "accepted", summary.Accepted, "excluded", reporter.Total())
			}
		}
	}

	return p.finish(summary, reporter), nil
}

// check normalizes and validates chunk into results. Records are
// independent at this stage, so they are spread over the worker pool.
func (p *Pipeline) check(ctx context.Context, chunk []domain.RawRecord, results []checked) error {
	if p.workers == 1 || len(chunk) < 2 {
		for i := range chunk {
			results[i] = p.checkOne(chunk[i])
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range chunk {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.checkOne(chunk[i])
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) checkOne(raw domain.RawRecord) checked {
	n, err := p.normalizer.Normalize(raw)
	if err != nil {
		return checked{reject: asRejection(err)}
	}
	v, err := p.validator.Validate(n)
	if err != nil {
		return checked{reject: asRejection(err)}
	}
	return checked{record: v}
}

func asRejection(err error) *domain.RejectionError {
	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		return rej
	}
	return &domain.RejectionError{Reason: domain.ReasonParseError, Detail: err.Error()}
}

func (p *Pipeline) finish(summary domain.RunSummary, reporter *ExclusionReporter) domain.RunSummary {
	summary.Excluded = reporter.Total()
	summary.ExcludedByReason = reporter.Counts()
	return summary
}
