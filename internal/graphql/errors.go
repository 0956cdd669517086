package graphql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"songcatalog/internal/app/songs"
	"songcatalog/internal/auth"
	"songcatalog/internal/logging"
)

// Error codes reported under extensions.code.
const (
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a resolver error carrying a machine readable code.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

// Extensions is picked up by the executor and rendered next to the message.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

func badUserInput(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: CodeBadUserInput}
}

// requireRoles fails unless the caller's token carries one of roles.
func requireRoles(ctx context.Context, roles ...string) error {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return &Error{Message: "authentication required", Code: CodeUnauthenticated}
	}
	if !claims.HasAnyRole(roles...) {
		return &Error{Message: "insufficient permissions", Code: CodeForbidden}
	}
	return nil
}

// translate turns service errors into user facing resolver errors. Anything
// unexpected is logged and reported without detail.
func translate(ctx context.Context, logger zerolog.Logger, err error) error {
	var (
		titleExists     *songs.TitleExistsError
		artistExists    *songs.ArtistExistsError
		versionInvalid  *songs.VersionInvalidError
		versionOutdated *songs.VersionOutdatedError
		notExists       *songs.NotExistsError
		invalidCriteria *songs.InvalidCriteriaError
		keywordInvalid  *songs.KeywordInvalidError
		fieldErrs       validator.ValidationErrors
	)

	switch {
	case errors.As(err, &titleExists):
		return badUserInput("the title %q already exists", titleExists.Title)
	case errors.As(err, &artistExists):
		return badUserInput("the artist %q already exists", artistExists.Name)
	case errors.As(err, &versionInvalid):
		return badUserInput("%q is not a valid version number", versionInvalid.Token)
	case errors.As(err, &versionOutdated):
		return badUserInput("the version number %d is outdated", versionOutdated.Version)
	case errors.As(err, &notExists):
		return badUserInput("there is no song with id %d", notExists.ID)
	case errors.As(err, &invalidCriteria):
		return badUserInput("%s", invalidCriteria.Error())
	case errors.As(err, &keywordInvalid):
		return badUserInput("%s", keywordInvalid.Error())
	case errors.As(err, &fieldErrs):
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return badUserInput("invalid input: %s", strings.Join(fields, ", "))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &Error{Message: "invalid username or password", Code: CodeUnauthenticated}
	}

	logging.FromContext(ctx, logger).Error().Err(err).Msg("resolver failed")
	return &Error{Message: "internal server error", Code: CodeInternal}
}

func isNotFound(err error) bool {
	return errors.Is(err, songs.ErrNotFound)
}
