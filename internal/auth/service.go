package auth

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the verified claims stored in ctx.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok && claims != nil
}

// Service exposes login.
type Service interface {
	Login(ctx context.Context, username, password string) (Token, error)
}

type service struct {
	directory *Directory
	tokens    *TokenManager
	logger    zerolog.Logger
}

// NewService constructs a login Service.
func NewService(directory *Directory, tokens *TokenManager, logger zerolog.Logger) Service {
	return &service{
		directory: directory,
		tokens:    tokens,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

func (s *service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.directory.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Info().Str("username", username).Msg("login rejected")
		return Token{}, err
	}

	token, err := s.tokens.Issue(user.Username, user.Roles)
	if err != nil {
		return Token{}, err
	}
	s.logger.Debug().Str("username", username).Msg("login succeeded")
	return token, nil
}
