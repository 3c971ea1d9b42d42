package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/propdocs/plan-extractor/internal/common"
)

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// Open opens the durable cache / failure-log store and bootstraps its
// schema. Postgres DSNs are served by pgx; anything else is treated as a
// sqlite path or URI, which keeps single-process deployments dependency-free.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
	}
	logger.Info("connecting to database", "driver", driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		logger.Error("failed to bootstrap schema", "error", err)
		_ = db.Close()
		return nil, common.WrapError(err, "bootstrap schema")
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// ensureSchema creates the two tables this core touches. Both statements are
// valid for sqlite and postgres.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extraction_cache (
			content_hash TEXT PRIMARY KEY,
			ocr_text     TEXT NOT NULL,
			confidence   REAL NOT NULL,
			page_count   INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_failures (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			tenant_id   TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			message     TEXT NOT NULL,
			details     TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_failures_document
			ON document_failures (document_id, created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection gracefully
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing database connection")
	if err := db.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
