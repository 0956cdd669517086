package songs

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"songcatalog/internal/models"
	"songcatalog/internal/store"
)

// ReadStore captures the persistence needs for song lookups.
type ReadStore interface {
	FindSongByID(ctx context.Context, id int64) (models.Song, error)
	FindSongs(ctx context.Context, criteria store.Criteria) ([]models.Song, error)
}

// ReadService exposes song lookups.
type ReadService interface {
	FindByID(ctx context.Context, id int64) (models.Song, error)
	Find(ctx context.Context, criteria map[string]string) ([]models.Song, error)
}

type readService struct {
	store  ReadStore
	logger zerolog.Logger
}

// NewReadService constructs a ReadService backed by the provided store.
func NewReadService(store ReadStore, logger zerolog.Logger) ReadService {
	return &readService{
		store:  store,
		logger: logger.With().Str("component", "song-read").Logger(),
	}
}

func (s *readService) FindByID(ctx context.Context, id int64) (models.Song, error) {
	if err := ctx.Err(); err != nil {
		return models.Song{}, err
	}
	if id <= 0 {
		return models.Song{}, ErrNotFound
	}

	song, err := s.store.FindSongByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug().Int64("id", id).Msg("song not found")
		return models.Song{}, ErrNotFound
	}
	if err != nil {
		return models.Song{}, err
	}
	return song, nil
}

// Find returns all songs when criteria is empty. Keys must be song fields other
// than artists, or one of the artist, rock and pop criteria; any other key fails
// before the store is queried.
func (s *readService) Find(ctx context.Context, criteria map[string]string) ([]models.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for key := range criteria {
		if !isSearchable(key) {
			s.logger.Debug().Str("key", key).Msg("rejecting search criterion")
			return nil, &InvalidCriteriaError{Key: key}
		}
	}

	songs, err := s.store.FindSongs(ctx, store.Criteria(criteria))
	if err != nil {
		var unknown *store.UnknownCriterionError
		if errors.As(err, &unknown) {
			return nil, &InvalidCriteriaError{Key: unknown.Key}
		}
		var invalid *store.InvalidValueError
		if errors.As(err, &invalid) {
			return nil, &InvalidCriteriaError{Key: invalid.Key, Value: invalid.Value}
		}
		return nil, err
	}

	s.logger.Debug().Int("criteria", len(criteria)).Int("count", len(songs)).Msg("songs found")
	return songs, nil
}

func isSearchable(key string) bool {
	if store.IsPseudoCriterion(key) {
		return true
	}
	return models.IsField(key) && key != models.FieldArtists
}
