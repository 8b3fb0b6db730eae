// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// Config holds all configuration values for the API server and the CLI.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// StoreDriver selects the database: "sqlite" (default) or "postgres".
	StoreDriver string

	// SQLitePath is the SQLite database file. Defaults to "data/nyc_taxi.db".
	SQLitePath string

	// DatabaseURL is the Postgres connection string. Required when StoreDriver is postgres.
	DatabaseURL string

	// DistanceUnit is the unit assumed for a distance column that does not name one.
	DistanceUnit domain.DistanceUnit

	// PipelineWorkers bounds the parallel normalize/validate stage. Defaults to 4.
	PipelineWorkers int

	// MaxUploadBytes caps POST /api/runs bodies. Defaults to 64 MiB.
	MaxUploadBytes int64

	// NATSURL enables run-completed events when set.
	NATSURL string

	// NATSSubject is where run-completed events go. Defaults to "taxi.runs.completed".
	NATSSubject string

	// MetricsEnabled mounts GET /metrics. Defaults to true.
	MetricsEnabled bool
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. Returns an error listing any
// required variables that are not set, or any variables with invalid values.
func Load() (Config, error) {
	// Load .env into environment (ignore if missing).
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "data/nyc_taxi.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getEnv("NATS_SUBJECT", "taxi.runs.completed"),
	}

	var missing, invalid []string

	switch cfg.StoreDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		invalid = append(invalid, fmt.Sprintf("STORE_DRIVER=%q (want sqlite or postgres)", cfg.StoreDriver))
	}

	unit, ok := domain.ParseDistanceUnit(getEnv("DISTANCE_UNIT", string(domain.UnitMiles)))
	if !ok {
		invalid = append(invalid, fmt.Sprintf("DISTANCE_UNIT=%q (want miles or km)", os.Getenv("DISTANCE_UNIT")))
	}
	cfg.DistanceUnit = unit

	workers, err := strconv.Atoi(getEnv("PIPELINE_WORKERS", "4"))
	if err != nil || workers < 1 {
		invalid = append(invalid, fmt.Sprintf("PIPELINE_WORKERS=%q (want a positive integer)", os.Getenv("PIPELINE_WORKERS")))
	}
	cfg.PipelineWorkers = workers

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "67108864"), 10, 64)
	if err != nil || maxUpload < 1 {
		invalid = append(invalid, fmt.Sprintf("MAX_UPLOAD_BYTES=%q (want a positive integer)", os.Getenv("MAX_UPLOAD_BYTES")))
	}
	cfg.MaxUploadBytes = maxUpload

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		invalid = append(invalid, fmt.Sprintf("METRICS_ENABLED=%q (want a boolean)", os.Getenv("METRICS_ENABLED")))
	}
	cfg.MetricsEnabled = metricsEnabled

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, "; "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
