package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"songcatalog/internal/config"
	"songcatalog/internal/logging"
	"songcatalog/internal/store"
)

const usage = "usage: migrate [up|down|version]"

func main() {
	logger, _ := logging.New(logging.Config{Level: "info", Format: "text"})

	if len(os.Args) != 2 {
		logger.Fatal().Msg(usage)
	}
	if err := run(context.Background(), os.Args[1], logger); err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("migration failed")
	}
}

func run(ctx context.Context, command string, logger zerolog.Logger) error {
	_ = godotenv.Load("config/local.env")
	_ = godotenv.Load()

	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	dialect, err := store.DialectFor(cfg.Driver)
	if err != nil {
		return err
	}

	driverName, dsn := "postgres", cfg.URL
	if dialect == store.SQLite {
		driverName, dsn = dialect.DriverName(), "file:"+cfg.SQLitePath+"?_foreign_keys=on"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	switch command {
	case "up":
		if err := store.MigrateUp(ctx, db, dialect); err != nil {
			return err
		}
		logger.Info().Str("dialect", dialect.Name()).Msg("migrations applied")
	case "down":
		if err := store.MigrateDown(ctx, db, dialect); err != nil {
			return err
		}
		logger.Info().Str("dialect", dialect.Name()).Msg("migrations rolled back")
	case "version":
		version, dirty, err := store.MigrationVersion(ctx, db, dialect)
		if err != nil {
			return err
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		return fmt.Errorf("unknown command %q, %s", command, usage)
	}
	return nil
}
