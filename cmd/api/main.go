// Package main is the entry point for the taxi pipeline API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/nyc-taxi/internal/config"
	"github.com/pkordes/nyc-taxi/internal/domain"
	"github.com/pkordes/nyc-taxi/internal/handler"
	"github.com/pkordes/nyc-taxi/internal/metrics"
	"github.com/pkordes/nyc-taxi/internal/middleware"
	"github.com/pkordes/nyc-taxi/internal/pipeline"
	"github.com/pkordes/nyc-taxi/internal/publisher"
	"github.com/pkordes/nyc-taxi/internal/service"
	"github.com/pkordes/nyc-taxi/internal/store"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// Open connects, verifies the DB is reachable, and applies migrations.
	st, err := store.Open(context.Background(), store.Options{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("store ready", "driver", cfg.StoreDriver)

	// --- Metrics & events -------------------------------------------------
	var mcol *metrics.Collector
	var ingestMetrics service.IngestMetrics
	var pubMetrics publisher.PublisherMetrics
	if cfg.MetricsEnabled {
		mcol = metrics.NewCollector()
		ingestMetrics, pubMetrics = mcol, mcol
	}

	var notifier service.RunNotifier
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, pubMetrics)
		if err != nil {
			slog.Error("failed to connect to nats", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
		slog.Info("run events enabled", "subject", cfg.NATSSubject)
	}

	// --- Services ---------------------------------------------------------
	p := pipeline.New(domain.RulesV1, pipeline.Options{
		Workers:     cfg.PipelineWorkers,
		DefaultUnit: cfg.DistanceUnit,
		Logger:      logger,
	})
	srv := handler.NewServer(
		service.NewTripService(st.Trips),
		service.NewRunService(st.Runs, st.Exclusions),
		service.NewIngestService(st.Runs, st.Trips, st.Exclusions, p, notifier, ingestMetrics),
		service.NewExportService(st.Runs, st.Trips, st.Exclusions),
	)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxUploadBytes))

	srv.Register(r)
	if mcol != nil {
		r.Method(http.MethodGet, "/metrics", mcol.Handler())
	}

	// --- HTTP Server ------------------------------------------------------
	// Uploads run the whole pipeline inside the request, so the read and
	// write timeouts are generous.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 30 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
