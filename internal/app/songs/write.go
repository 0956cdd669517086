package songs

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"songcatalog/internal/models"
	"songcatalog/internal/store"
)

// WriteStore captures the persistence needs for song mutations.
type WriteStore interface {
	InsertSong(ctx context.Context, song models.Song) (models.Song, error)
	UpdateSong(ctx context.Context, song models.Song) (int, error)
	DeleteSong(ctx context.Context, id int64) (bool, error)
}

// Notifier delivers a message about a catalog change.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Observer counts write outcomes and dropped notifications.
type Observer interface {
	ObserveWrite(operation, outcome string)
	NotificationFailed()
}

// WriteService exposes song mutations.
type WriteService interface {
	Create(ctx context.Context, song models.Song) (int64, error)
	Update(ctx context.Context, id int64, changes models.Changes, version int) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type writeService struct {
	store    WriteStore
	reader   ReadService
	notifier Notifier
	observer Observer
	logger   zerolog.Logger
}

// NewWriteService constructs a WriteService. notifier and observer may be nil.
func NewWriteService(store WriteStore, reader ReadService, notifier Notifier, observer Observer, logger zerolog.Logger) WriteService {
	return &writeService{
		store:    store,
		reader:   reader,
		notifier: notifier,
		observer: observer,
		logger:   logger.With().Str("component", "song-write").Logger(),
	}
}

// Create stores a new song with its artists and returns the assigned id. The
// notification is sent after the song is stored; its failure is only logged.
func (s *writeService) Create(ctx context.Context, song models.Song) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.checkTitle(ctx, 0, song.Title); err != nil {
		s.observe("create", err)
		return 0, err
	}

	song.ID = 0
	song.Version = 0
	created, err := s.store.InsertSong(ctx, song)
	if err != nil {
		err = translateStoreError(err, song)
		s.observe("create", err)
		return 0, err
	}
	s.observe("create", nil)
	s.logger.Debug().Int64("id", created.ID).Str("title", created.Title).Msg("song created")

	s.notify(ctx, created)
	return created.ID, nil
}

// Update merges changes onto the stored song. version is the version the client
// last read; a version older than the stored one is rejected.
func (s *writeService) Update(ctx context.Context, id int64, changes models.Changes, version int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	current, err := s.reader.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		err = &NotExistsError{ID: id}
		s.observe("update", err)
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	if version < current.Version {
		err := &VersionOutdatedError{ID: id, Version: version}
		s.observe("update", err)
		return 0, err
	}

	merged := changes.Apply(current)
	if merged.Title != current.Title {
		if err := s.checkTitle(ctx, id, merged.Title); err != nil {
			s.observe("update", err)
			return 0, err
		}
	}

	newVersion, err := s.store.UpdateSong(ctx, merged)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			err = &VersionOutdatedError{ID: id, Version: version}
		} else {
			err = translateStoreError(err, merged)
		}
		s.observe("update", err)
		return 0, err
	}

	s.observe("update", nil)
	s.logger.Debug().Int64("id", id).Int("version", newVersion).Msg("song updated")
	return newVersion, nil
}

// Delete removes the song and its artists. A missing song is not an error.
func (s *writeService) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := s.reader.FindByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.observe("delete", ErrNotFound)
			return false, nil
		}
		return false, err
	}

	deleted, err := s.store.DeleteSong(ctx, id)
	if err != nil {
		s.observe("delete", err)
		return false, err
	}
	s.observe("delete", nil)
	s.logger.Debug().Int64("id", id).Bool("deleted", deleted).Msg("song deleted")
	return deleted, nil
}

// checkTitle fails when a song other than self already uses title.
func (s *writeService) checkTitle(ctx context.Context, self int64, title string) error {
	if title == "" {
		return nil
	}
	existing, err := s.reader.Find(ctx, map[string]string{models.FieldTitle: title})
	if err != nil {
		return err
	}
	for _, song := range existing {
		if song.Title == title && song.ID != self {
			return &TitleExistsError{Title: title}
		}
	}
	return nil
}

func (s *writeService) notify(ctx context.Context, song models.Song) {
	if s.notifier == nil {
		return
	}
	subject := fmt.Sprintf("New song %d", song.ID)
	body := fmt.Sprintf("<strong>Song with title <i>%s</i> created</strong>", html.EscapeString(song.Title))
	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		s.logger.Warn().Err(err).Int64("id", song.ID).Msg("song notification failed")
		if s.observer != nil {
			s.observer.NotificationFailed()
		}
	}
}

func (s *writeService) observe(operation string, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveWrite(operation, Outcome(err))
}

// Outcome names the result of a write for metrics and logs.
func Outcome(err error) string {
	var (
		titleExists     *TitleExistsError
		artistExists    *ArtistExistsError
		versionOutdated *VersionOutdatedError
		notExists       *NotExistsError
		keywordInvalid  *KeywordInvalidError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.As(err, &notExists):
		return "not_found"
	case errors.As(err, &titleExists), errors.As(err, &artistExists):
		return "conflict"
	case errors.As(err, &versionOutdated):
		return "outdated"
	case errors.As(err, &keywordInvalid):
		return "invalid"
	}
	return "error"
}

func translateStoreError(err error, song models.Song) error {
	var (
		duplicateArtist *store.DuplicateArtistError
		invalidKeyword  *store.InvalidKeywordError
	)
	switch {
	case errors.As(err, &invalidKeyword):
		return &KeywordInvalidError{Keyword: invalidKeyword.Keyword}
	case errors.Is(err, store.ErrDuplicateTitle):
		return &TitleExistsError{Title: song.Title}
	case errors.As(err, &duplicateArtist):
		return &ArtistExistsError{Name: duplicateArtist.Name}
	}
	return err
}
