package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver           string // postgres | sqlite (or sqlite3)
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Open connects to the configured database and returns an ent SQL driver.
// For postgres the underlying pgx pool is returned as well; it is nil for sqlite.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	switch cfg.Driver {
	case "", dialect.Postgres:
		return openPostgres(ctx, cfg, logger)
	case "sqlite", dialect.SQLite:
		drv, err := openSQLite(ctx, cfg, logger)
		return drv, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	logger.Info("connecting to database", "driver", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "contracts-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	// Wrap pool as *sql.DB for the ent driver.
	db := stdlib.OpenDBFromPool(pool)
	drv := entsql.OpenDB(dialect.Postgres, db)

	logger.Info("successfully connected to database")
	return drv, pool, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, error) {
	logger.Info("opening database", "driver", dialect.SQLite, "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		logger.Error("failed to configure database", "error", err)
		return nil, err
	}
	return entsql.OpenDB(dialect.SQLite, db), nil
}

// Close closes the database connections gracefully
func Close(drv *entsql.Driver, pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	if drv != nil {
		if err := drv.Close(); err != nil {
			logger.Error("failed to close database driver", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings using database/sql to catch DSN issues early.
func HealthCheck(ctx context.Context, drv *entsql.Driver, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

var migrations = map[string][]string{
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS contracts (
	id UUID PRIMARY KEY,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'pending',
	progress INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	extracted_text TEXT,
	extraction_method TEXT,
	page_count INTEGER,
	parsed_data JSONB,
	overall_score DOUBLE PRECISION,
	uploaded_at TIMESTAMPTZ NOT NULL,
	processing_started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS contracts_status_idx ON contracts (status)`,
		`CREATE INDEX IF NOT EXISTS contracts_uploaded_at_idx ON contracts (uploaded_at)`,
	},
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'pending',
	progress INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	extracted_text TEXT,
	extraction_method TEXT,
	page_count INTEGER,
	parsed_data TEXT,
	overall_score REAL,
	uploaded_at TIMESTAMP NOT NULL,
	processing_started_at TIMESTAMP,
	completed_at TIMESTAMP,
	updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS contracts_status_idx ON contracts (status)`,
		`CREATE INDEX IF NOT EXISTS contracts_uploaded_at_idx ON contracts (uploaded_at)`,
	},
}

// Migrate creates the schema for the driver's dialect. It is idempotent.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	stmts, ok := migrations[drv.Dialect()]
	if !ok {
		return fmt.Errorf("no migrations for dialect %q", drv.Dialect())
	}
	for _, stmt := range stmts {
		var res sql.Result
		if err := drv.Exec(ctx, stmt, []any{}, &res); err != nil {
			logger.Error("migration failed", "dialect", drv.Dialect(), "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("database schema ready", "dialect", drv.Dialect())
	return nil
}
