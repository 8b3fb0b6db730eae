// Command clean runs the trip cleaning pipeline over one CSV file.
//
// By default it writes the cleaned trips to -output, the exclusions to -log
// and prints a JSON summary. With -store it records the result as a run in
// the configured database instead (STORE_DRIVER, SQLITE_PATH, DATABASE_URL).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkordes/nyc-taxi/internal/config"
	"github.com/pkordes/nyc-taxi/internal/csvio"
	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
	"github.com/pkordes/nyc-taxi/internal/service"
	"github.com/pkordes/nyc-taxi/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	input, output, log, stats string
	distanceUnit              string
	workers                   int
	store                     bool
}

// stats is the JSON summary printed after a file run.
type stats struct {
	RuleVersion    string         `json:"rule_version"`
	TotalRows      int            `json:"total_rows"`
	CleanedRows    int            `json:"cleaned_rows"`
	ExcludedRows   int            `json:"excluded_rows"`
	ExcludedCounts map[string]int `json:"excluded_counts"`
}

// run is main without the process exit, so it can be tested.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.input, "input", "", "raw CSV path (required)")
	fs.StringVar(&opts.output, "output", "", "cleaned CSV path")
	fs.StringVar(&opts.log, "log", "", "exclusions CSV path")
	fs.StringVar(&opts.stats, "stats", "", "summary JSON path")
	fs.StringVar(&opts.distanceUnit, "distance-unit", "", "unit of a plain distance column: miles or km (default DISTANCE_UNIT, else miles)")
	fs.IntVar(&opts.workers, "workers", 0, "parallel normalize/validate workers (default PIPELINE_WORKERS)")
	fs.BoolVar(&opts.store, "store", false, "record the run in the configured store instead of writing files")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := clean(ctx, opts, stdout, logger); err != nil {
		logger.Error("clean failed", "error", err)
		return 1
	}
	return 0
}

func clean(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	if opts.input == "" {
		return errors.New("-input is required")
	}
	if opts.store && (opts.output != "" || opts.log != "" || opts.stats != "") {
		return errors.New("-store cannot be combined with -output, -log or -stats")
	}
	if !opts.store && (opts.output == "" || opts.log == "") {
		return errors.New("-output and -log are required unless -store is set")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	unit := cfg.DistanceUnit
	if opts.distanceUnit != "" {
		u, ok := domain.ParseDistanceUnit(opts.distanceUnit)
		if !ok {
			return fmt.Errorf("invalid -distance-unit %q: want miles or km", opts.distanceUnit)
		}
		unit = u
	}
	workers := cfg.PipelineWorkers
	if opts.workers > 0 {
		workers = opts.workers
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	src, err := csvio.NewReader(in, csvio.ReaderOptions{DefaultUnit: unit})
	if err != nil {
		return err
	}
	p := pipeline.New(domain.RulesV1, pipeline.Options{Workers: workers, DefaultUnit: unit, Logger: logger})

	if opts.store {
		return ingest(ctx, cfg, p, opts.input, src, stdout)
	}
	return writeFiles(ctx, opts, p, src, stdout)
}

// ingest stores the run through the same service the API uses.
func ingest(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, source string, src pipeline.Source, stdout io.Writer) error {
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	svc := service.NewIngestService(st.Runs, st.Trips, st.Exclusions, p, nil, nil)
	run, err := svc.Ingest(ctx, source, src)
	if err != nil {
		return err
	}
	return writeJSON(stdout, statsFromSummary(domain.RunSummary{
		RuleVersion:      run.RuleVersion,
		Total:            run.TotalRows,
		Accepted:         run.AcceptedRows,
		Excluded:         run.ExcludedRows,
		ExcludedByReason: run.ExcludedByReason,
	}))
}

func writeFiles(ctx context.Context, opts options, p *pipeline.Pipeline, src pipeline.Source, stdout io.Writer) (err error) {
	out, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer closeFile(out, &err)
	logFile, err := os.Create(opts.log)
	if err != nil {
		return err
	}
	defer closeFile(logFile, &err)

	trips, err := csvio.NewTripWriter(out)
	if err != nil {
		return err
	}
	exclusions, err := csvio.NewExclusionWriter(logFile)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, src, trips, exclusions)
	if err != nil {
		return err
	}
	if err := trips.Flush(); err != nil {
		return err
	}
	if err := exclusions.Flush(); err != nil {
		return err
	}

	s := statsFromSummary(summary)
	if opts.stats != "" {
		f, err := os.Create(opts.stats)
		if err != nil {
			return err
		}
		if err := writeJSON(f, s); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return writeJSON(stdout, s)
}

func statsFromSummary(s domain.RunSummary) stats {
	counts := make(map[string]int, len(s.ExcludedByReason))
	for reason, n := range s.ExcludedByReason {
		counts[string(reason)] = n
	}
	return stats{
		RuleVersion:    s.RuleVersion,
		TotalRows:      s.Total,
		CleanedRows:    s.Accepted,
		ExcludedRows:   s.Excluded,
		ExcludedCounts: counts,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// closeFile closes f and reports the error through err unless an earlier one is set.
func closeFile(f *os.File, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
