package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"songcatalog/internal/config"
	"songcatalog/internal/store"
)

// dataSource returns the dialect and DSN selected by the configuration.
func dataSource(cfg config.DatabaseConfig) (store.Dialect, string, error) {
	dialect, err := store.DialectFor(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	if dialect == store.SQLite {
		return dialect, "file:" + cfg.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000", nil
	}
	return dialect, cfg.URL, nil
}

// openDatabase establishes a database connection and retries until the instance responds.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*sql.DB, store.Dialect, error) {
	dialect, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == store.SQLite {
		// one writer at a time keeps sqlite from reporting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	const (
		pingTimeout    = 5 * time.Second
		maxWait        = 30 * time.Second
		initialBackoff = 500 * time.Millisecond
		maxBackoff     = 5 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	var lastErr error

	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			logger.Info().Str("dialect", dialect.Name()).Msg("database connected")
			return db, dialect, nil
		}

		// Respect caller cancellation.
		if ctx.Err() != nil {
			break
		}

		if time.Now().After(deadline) {
			break
		}

		logger.Warn().Err(lastErr).Dur("retry_in", backoff).Msg("database not ready")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	_ = db.Close()
	return nil, nil, fmt.Errorf("ping database: %w", lastErr)
}
