// Package store opens the configured database, applies migrations, and
// hands back the repositories the services need.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pkordes/nyc-taxi/internal/repo"
	"github.com/pkordes/nyc-taxi/migrations"
)

// Supported values for Options.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and locates the backing database.
type Options struct {
	Driver string

	// DatabaseURL is the Postgres connection string. Used when Driver is postgres.
	DatabaseURL string

	// SQLitePath is the database file, or ":memory:". Used when Driver is sqlite.
	SQLitePath string
}

// Store bundles the repositories over one open database.
type Store struct {
	Runs       repo.RunRepo
	Trips      repo.TripRepo
	Exclusions repo.ExclusionRepo

	close func() error
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the database named by opts and migrates it to the latest
// schema version.
func Open(ctx context.Context, opts Options) (*Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		return openPostgres(ctx, opts.DatabaseURL)
	case DriverSQLite:
		return openSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("store.Open: unknown driver %q", opts.Driver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store.Open: postgres: empty database url")
	}

	// pgxpool.New does not dial; Ping verifies the DB is reachable.
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store.Open: postgres ping: %w", err)
	}

	// goose needs a *sql.DB; borrow one from the pool for the migration only.
	sqlDB := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, goose.DialectPostgres, sqlDB, migrations.Postgres())
	sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		Runs:       repo.NewRunRepo(pool),
		Trips:      repo.NewTripRepo(pool),
		Exclusions: repo.NewExclusionRepo(pool),
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store.Open: sqlite: empty path")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store.Open: sqlite dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store.Open: sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("store.Open: sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" coherent.
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(ctx, goose.DialectSQLite3, sqlDB, migrations.SQLite()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{
		Runs:       repo.NewSQLiteRunRepo(gdb),
		Trips:      repo.NewSQLiteTripRepo(gdb),
		Exclusions: repo.NewSQLiteExclusionRepo(gdb),
		close:      sqlDB.Close,
	}, nil
}
