// Package service contains the business logic of the taxi pipeline API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
	"github.com/pkordes/nyc-taxi/internal/repo"
)

// StoreBatchSize is how many trips or exclusions are buffered before a bulk insert.
const StoreBatchSize = 1000

// RunNotifier is told about every run that completes.
type RunNotifier interface {
	RunCompleted(ctx context.Context, run domain.Run) error
}

// IngestMetrics records run outcomes.
type IngestMetrics interface {
	ObserveRun(run domain.Run, elapsed time.Duration)
	RunFailed()
}

// IngestService runs the cleaning pipeline over a source and persists the
// result as one run.
type IngestService struct {
	runs       repo.RunRepo
	trips      repo.TripRepo
	exclusions repo.ExclusionRepo
	pipeline   *pipeline.Pipeline
	notifier   RunNotifier
	metrics    IngestMetrics
	batchSize  int
}

// NewIngestService constructs an IngestService. notifier and metrics may be nil.
func NewIngestService(
	runs repo.RunRepo,
	trips repo.TripRepo,
	exclusions repo.ExclusionRepo,
	p *pipeline.Pipeline,
	notifier RunNotifier,
	metrics IngestMetrics,
) *IngestService {
	return &IngestService{
		runs:       runs,
		trips:      trips,
		exclusions: exclusions,
		pipeline:   p,
		notifier:   notifier,
		metrics:    metrics,
		batchSize:  StoreBatchSize,
	}
}

// Ingest cleans every record of src and stores the outcome under a new run.
// The run's trips only become queryable once the run is completed; a run
// that fails part way is marked failed and its rows stay hidden.
func (s *IngestService) Ingest(ctx context.Context, source string, src pipeline.Source) (domain.Run, error) {
	start := time.Now()

	run, err := s.runs.Create(ctx, domain.Run{
		ID:          uuid.New(),
		RuleVersion: s.pipeline.Rules().Version,
		Source:      source,
		Status:      domain.RunRunning,
		StartedAt:   start.UTC(),
	})
	if err != nil {
		return domain.Run{}, fmt.Errorf("service.IngestService.Ingest: create run: %w", err)
	}
	slog.InfoContext(ctx, "run started", "run_id", run.ID, "source", source, "rule_version", run.RuleVersion)

	sink := newStoreSink(run.ID, s.trips, s.exclusions, s.batchSize)
	summary, err := s.pipeline.Run(ctx, src, sink, sink)
	if err == nil {
		err = sink.Flush(ctx)
	}
	if err != nil {
		s.fail(ctx, run, summary, err)
		return domain.Run{}, fmt.Errorf("service.IngestService.Ingest: %w", err)
	}

	finished := time.Now().UTC()
	run.Status = domain.RunCompleted
	run.TotalRows = summary.Total
	run.AcceptedRows = summary.Accepted
	run.ExcludedRows = summary.Excluded
	run.FinishedAt = &finished

	completed, err := s.runs.Finish(ctx, run)
	if err != nil {
		err = fmt.Errorf("finish run: %w", err)
		s.fail(ctx, run, summary, err)
		return domain.Run{}, fmt.Errorf("service.IngestService.Ingest: %w", err)
	}
	run = completed
	run.ExcludedByReason = summary.ExcludedByReason

	slog.InfoContext(ctx, "run completed",
		"run_id", run.ID,
		"total", run.TotalRows,
		"accepted", run.AcceptedRows,
		"excluded", run.ExcludedRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if s.metrics != nil {
		s.metrics.ObserveRun(run, time.Since(start))
	}
	if s.notifier != nil {
		if err := s.notifier.RunCompleted(ctx, run); err != nil {
			slog.WarnContext(ctx, "run notification failed", "run_id", run.ID, "error", err)
		}
	}
	return run, nil
}

// fail records the failure on the run row. It uses a context detached from
// cancellation so a cancelled request still leaves the run marked failed.
func (s *IngestService) fail(ctx context.Context, run domain.Run, summary domain.RunSummary, cause error) {
	slog.ErrorContext(ctx, "run failed", "run_id", run.ID, "processed", summary.Total, "error", cause)
	if s.metrics != nil {
		s.metrics.RunFailed()
	}

	finished := time.Now().UTC()
	run.Status = domain.RunFailed
	run.TotalRows = summary.Total
	run.AcceptedRows = summary.Accepted
	run.ExcludedRows = summary.Excluded
	run.Error = cause.Error()
	run.FinishedAt = &finished
	if _, err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		slog.ErrorContext(ctx, "mark run failed", "run_id", run.ID, "error", err)
	}
}

// storeSink buffers pipeline output and writes it to the repos in batches.
type storeSink struct {
	runID      uuid.UUID
	trips      repo.TripRepo
	exclusions repo.ExclusionRepo
	batchSize  int

	tripBuf      []domain.EnrichedRecord
	exclusionBuf []domain.ExclusionRecord
}

func newStoreSink(runID uuid.UUID, trips repo.TripRepo, exclusions repo.ExclusionRepo, batchSize int) *storeSink {
	return &storeSink{
		runID:        runID,
		trips:        trips,
		exclusions:   exclusions,
		batchSize:    batchSize,
		tripBuf:      make([]domain.EnrichedRecord, 0, batchSize),
		exclusionBuf: make([]domain.ExclusionRecord, 0, batchSize),
	}
}

func (s *storeSink) WriteTrip(ctx context.Context, rec domain.EnrichedRecord) error {
	s.tripBuf = append(s.tripBuf, rec)
	if len(s.tripBuf) >= s.batchSize {
		return s.flushTrips(ctx)
	}
	return nil
}

func (s *storeSink) WriteExclusion(ctx context.Context, rec domain.ExclusionRecord) error {
	s.exclusionBuf = append(s.exclusionBuf, rec)
	if len(s.exclusionBuf) >= s.batchSize {
		return s.flushExclusions(ctx)
	}
	return nil
}

// Flush writes whatever is still buffered.
func (s *storeSink) Flush(ctx context.Context) error {
	if err := s.flushTrips(ctx); err != nil {
		return err
	}
	return s.flushExclusions(ctx)
}

func (s *storeSink) flushTrips(ctx context.Context) error {
	if len(s.tripBuf) == 0 {
		return nil
	}
	if _, err := s.trips.InsertBatch(ctx, s.runID, s.tripBuf); err != nil {
		return fmt.Errorf("store trips: %w", err)
	}
	s.tripBuf = s.tripBuf[:0]
	return nil
}

func (s *storeSink) flushExclusions(ctx context.Context) error {
	if len(s.exclusionBuf) == 0 {
		return nil
	}
	if _, err := s.exclusions.InsertBatch(ctx, s.runID, s.exclusionBuf); err != nil {
		return fmt.Errorf("store exclusions: %w", err)
	}
	s.exclusionBuf = s.exclusionBuf[:0]
	return nil
}
