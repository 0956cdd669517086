package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFiles embed.FS

// MigrateUp applies all pending migrations for the dialect.
func MigrateUp(ctx context.Context, db *sql.DB, d Dialect) error {
	return runMigrations(ctx, db, d, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// MigrateDown reverts every applied migration for the dialect.
func MigrateDown(ctx context.Context, db *sql.DB, d Dialect) error {
	return runMigrations(ctx, db, d, func(m *migrate.Migrate) error {
		return m.Down()
	})
}

// MigrationVersion reports the applied schema version and whether the last
// migration failed half-way.
func MigrationVersion(ctx context.Context, db *sql.DB, d Dialect) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := runMigrations(ctx, db, d, func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

// runMigrations never closes the migrate instance: both database drivers close
// the handle they were given, and db belongs to the caller.
func runMigrations(ctx context.Context, db *sql.DB, d Dialect, fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationFiles, "migrations/"+d.Name())
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var driver database.Driver
	switch d.Name() {
	case Postgres.Name():
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire migration connection: %w", err)
		}
		defer conn.Close()
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("create postgres migration driver: %w", err)
		}
	case SQLite.Name():
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite migration driver: %w", err)
		}
	default:
		return fmt.Errorf("no migrations for dialect %q", d.Name())
	}

	m, err := migrate.NewWithInstance("iofs", src, d.Name(), driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
