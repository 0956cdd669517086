package httpapi

import (
	"context"
	"errors"
	"net/http"

	"songcatalog/internal/app/songs"
	"songcatalog/internal/logging"
)

// writeServiceError maps service errors onto status codes. Unknown errors are
// logged and answered with a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		titleExists     *songs.TitleExistsError
		artistExists    *songs.ArtistExistsError
		versionInvalid  *songs.VersionInvalidError
		versionOutdated *songs.VersionOutdatedError
		notExists       *songs.NotExistsError
		invalidCriteria *songs.InvalidCriteriaError
		keywordInvalid  *songs.KeywordInvalidError
	)

	switch {
	case errors.Is(err, songs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "song not found"})
	case errors.As(err, &invalidCriteria):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidCriteria.Error()})
	case errors.As(err, &keywordInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: keywordInvalid.Error()})
	case errors.As(err, &titleExists):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: titleExists.Error()})
	case errors.As(err, &artistExists):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: artistExists.Error()})
	case errors.As(err, &versionInvalid):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: versionInvalid.Error()})
	case errors.As(err, &versionOutdated):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: versionOutdated.Error()})
	case errors.As(err, &notExists):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: notExists.Error()})
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		w.WriteHeader(499)
	default:
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
