package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"songcatalog/internal/auth"
	"songcatalog/internal/http/middleware"
	"songcatalog/internal/models"
)

const restPath = "/rest"

// SongReader describes the song lookups needed by the HTTP handlers.
type SongReader interface {
	FindByID(ctx context.Context, id int64) (models.Song, error)
	Find(ctx context.Context, criteria map[string]string) ([]models.Song, error)
}

// SongWriter describes the song mutations needed by the HTTP handlers.
type SongWriter interface {
	Create(ctx context.Context, song models.Song) (int64, error)
	Update(ctx context.Context, id int64, changes models.Changes, version int) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// LoginService issues access tokens.
type LoginService interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
}

// HealthChecker reports whether the database answers.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MetricsProvider records requests and exposes the scrape handler.
type MetricsProvider interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// Deps carries the collaborators of a Server. Metrics, Limiter and GraphQL are
// optional.
type Deps struct {
	Reader   SongReader
	Writer   SongWriter
	Login    LoginService
	Health   HealthChecker
	Verifier middleware.TokenVerifier
	Metrics  MetricsProvider
	Limiter  *middleware.RateLimiter
	GraphQL  http.Handler
	Logger   zerolog.Logger
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	reader   SongReader
	writer   SongWriter
	login    LoginService
	health   HealthChecker
	verifier middleware.TokenVerifier
	metrics  MetricsProvider
	limiter  *middleware.RateLimiter
	graphql  http.Handler
	validate *validator.Validate
	logger   zerolog.Logger
}

// New configures a Server.
func New(deps Deps) *Server {
	return &Server{
		reader:   deps.Reader,
		writer:   deps.Writer,
		login:    deps.Login,
		health:   deps.Health,
		verifier: deps.Verifier,
		metrics:  deps.Metrics,
		limiter:  deps.Limiter,
		graphql:  deps.GraphQL,
		validate: newValidator(),
		logger:   deps.Logger.With().Str("component", "httpapi").Logger(),
	}
}

// Routes exposes the song catalog, login, health and metrics endpoints.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}
	if s.verifier != nil {
		r.Use(middleware.Authenticate(s.verifier))
	}

	r.HandleFunc("/health/liveness", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/readiness", s.handleReadiness).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.Handle("/auth/login", s.limited(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)

	r.HandleFunc(restPath, s.handleFind).Methods(http.MethodGet)
	r.Handle(restPath, s.guarded(s.handleCreate, auth.RoleAdmin, auth.RoleStaff)).Methods(http.MethodPost)

	item := restPath + "/{id:[0-9]+}"
	r.HandleFunc(item, s.handleFindByID).Methods(http.MethodGet)
	r.Handle(item, s.guarded(s.handleUpdate, auth.RoleAdmin, auth.RoleStaff)).Methods(http.MethodPut)
	r.Handle(item, s.guarded(s.handleDelete, auth.RoleAdmin)).Methods(http.MethodDelete)

	if s.graphql != nil {
		r.Handle("/graphql", s.limited(s.graphql)).Methods(http.MethodGet, http.MethodPost)
	}

	return r
}

// guarded applies the rate limit and the role check to a write handler.
func (s *Server) guarded(h http.HandlerFunc, roles ...string) http.Handler {
	return s.limited(middleware.RequireRoles(roles...)(h))
}

func (s *Server) limited(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// acceptsJSON rejects clients that ask for neither JSON nor HTML.
func acceptsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "*/*", "application/*", "application/json", "application/hal+json", "text/*", "text/html":
			return true
		}
	}
	return false
}

// baseURI is the absolute URI of the song collection for r.
func baseURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	return scheme + "://" + r.Host + restPath
}
