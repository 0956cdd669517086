package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"songcatalog/internal/app/songs"
	"songcatalog/internal/auth"
	"songcatalog/internal/config"
	"songcatalog/internal/graphql"
	"songcatalog/internal/http/middleware"
	"songcatalog/internal/httpapi"
	"songcatalog/internal/metrics"
	"songcatalog/internal/store"
)

type services struct {
	reader  songs.ReadService
	writer  songs.WriteService
	login   auth.Service
	tokens  *auth.TokenManager
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter
}

func newServices(cfg *config.Config, dataStore *store.Store, notifier songs.Notifier, passwordHash string, logger zerolog.Logger) services {
	m := metrics.New()
	reader := songs.NewReadService(dataStore, logger)
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTExpiresIn)
	directory := auth.NewDirectory(auth.DefaultUsers(passwordHash))

	return services{
		reader:  reader,
		writer:  songs.NewWriteService(dataStore, reader, notifier, m, logger),
		login:   auth.NewService(directory, tokens, logger),
		tokens:  tokens,
		metrics: m,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}
}

func newHTTPHandler(cfg *config.Config, dataStore *store.Store, svc services, logger zerolog.Logger) (http.Handler, error) {
	schema, err := graphql.NewSchema(svc.reader, svc.writer, svc.login, logger)
	if err != nil {
		return nil, err
	}

	api := httpapi.New(httpapi.Deps{
		Reader:   svc.reader,
		Writer:   svc.writer,
		Login:    svc.login,
		Health:   dataStore,
		Verifier: svc.tokens,
		Metrics:  svc.metrics,
		Limiter:  svc.limiter,
		GraphQL:  graphql.Handler(schema),
		Logger:   logger,
	})

	var handler http.Handler = api.Routes()
	handler = middleware.CORS(cfg.CORS.AllowedOrigins)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestLogging(logger)(handler)
	return handler, nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler, logger zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          newStdLogger(logger),
	}
}
