package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"songcatalog/internal/auth"
	"songcatalog/internal/config"
	"songcatalog/internal/logging"
	"songcatalog/internal/mail"
	"songcatalog/internal/store"
)

// developmentPassword is the password of the built-in accounts when no hash is configured.
const developmentPassword = "p"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load("config/local.env")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		File:           cfg.Logging.File,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxBackups: cfg.Logging.FileMaxBackups,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logCloser.Close()
	logging.SetGlobalLogger(logger)
	logger = logger.With().Str("service", "songcatalog").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDatabase(ctx, cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.MigrateUp(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	dataStore := store.New(db, dialect)

	if cfg.Database.Populate {
		if err := bootstrapDemoData(ctx, dataStore, logging.Component(logger, "bootstrap")); err != nil {
			return err
		}
	}

	passwordHash, err := resolvePasswordHash(cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := mail.NewDispatcher(newMailSender(cfg, logger), mail.DispatcherConfig{
		From:    cfg.Mail.From,
		To:      cfg.Mail.To,
		Timeout: cfg.Mail.Timeout,
	}, logger)

	svc := newServices(cfg, dataStore, dispatcher, passwordHash, logger)
	handler, err := newHTTPHandler(cfg, dataStore, svc, logger)
	if err != nil {
		return err
	}
	server := newHTTPServer(cfg, handler, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				svc.limiter.Prune()
			}
		}
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.Environment).Msg("songcatalog listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// resolvePasswordHash falls back to a hash of the development password outside
// production.
func resolvePasswordHash(cfg *config.Config, logger zerolog.Logger) (string, error) {
	if cfg.Security.PasswordHash != "" {
		return cfg.Security.PasswordHash, nil
	}
	logger.Warn().Msg("USER_PASSWORD_HASH not set, built-in accounts use the development password")
	return auth.HashPassword(developmentPassword)
}

func newMailSender(cfg *config.Config, logger zerolog.Logger) mail.Sender {
	if cfg.Mail.Disabled {
		return mail.NewLogSender(logging.Component(logger, "mail"))
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		Timeout:  cfg.Mail.Timeout,
	})
}

// newStdLogger routes net/http server errors into zerolog.
func newStdLogger(logger zerolog.Logger) *stdlog.Logger {
	return stdlog.New(logging.Component(logger, "http"), "", 0)
}
