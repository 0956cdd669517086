package songs

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"songcatalog/internal/models"
	"songcatalog/internal/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return n.err
}

type recordingObserver struct {
	outcomes       []string
	notifyFailures int
}

func (o *recordingObserver) NotificationFailed() {
	o.notifyFailures++
}

func (o *recordingObserver) ObserveWrite(operation, outcome string) {
	o.outcomes = append(o.outcomes, operation+":"+outcome)
}

type fixture struct {
	store    *store.Store
	reader   ReadService
	writer   WriteService
	notifier *recordingNotifier
	observer *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open(store.SQLite.DriverName(), ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.MigrateUp(context.Background(), db, store.SQLite))

	st := store.New(db, store.SQLite)
	reader := NewReadService(st, zerolog.Nop())
	notifier := &recordingNotifier{}
	observer := &recordingObserver{}
	return &fixture{
		store:    st,
		reader:   reader,
		writer:   NewWriteService(st, reader, notifier, observer, zerolog.Nop()),
		notifier: notifier,
		observer: observer,
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCreateUpdateDeleteScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.writer.Create(ctx, models.Song{
		Title:    "Imagine",
		Rating:   5,
		Kind:     models.KindCD,
		Keywords: []string{"classic"},
	})
	require.NoError(t, err)

	song, err := f.reader.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0, song.Version)
	require.Equal(t, []string{"New song " + itoa(id)}, f.notifier.subjects)

	version, err := f.writer.Update(ctx, id, models.Changes{Rating: intPtr(4)}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	_, err = f.writer.Update(ctx, id, models.Changes{Rating: intPtr(3)}, 0)
	var outdated *VersionOutdatedError
	require.ErrorAs(t, err, &outdated)
	require.Equal(t, id, outdated.ID)

	song, err = f.reader.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 4, song.Rating)
	require.Equal(t, 1, song.Version)

	deleted, err := f.writer.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = f.reader.FindByID(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, []string{"create:ok", "update:ok", "update:outdated", "delete:ok"}, f.observer.outcomes)
}

func TestCreateRejectsDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.writer.Create(ctx, models.Song{Title: "Imagine"})
	require.NoError(t, err)

	_, err = f.writer.Create(ctx, models.Song{Title: "Imagine"})
	var exists *TitleExistsError
	require.ErrorAs(t, err, &exists)
	require.Equal(t, "Imagine", exists.Title)
	require.Len(t, f.notifier.subjects, 1)

	// A title that merely contains an existing one is still free.
	_, err = f.writer.Create(ctx, models.Song{Title: "Imagine All the People"})
	require.NoError(t, err)
}

func TestCreateRejectsDuplicateArtist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.writer.Create(ctx, models.Song{Title: "Imagine", Artists: []models.Artist{{Name: "John Lennon"}}})
	require.NoError(t, err)

	_, err = f.writer.Create(ctx, models.Song{Title: "Jealous Guy", Artists: []models.Artist{{Name: "John Lennon"}}})
	var exists *ArtistExistsError
	require.ErrorAs(t, err, &exists)
	require.Equal(t, "John Lennon", exists.Name)

	songs, err := f.reader.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, songs, 1)
}

func TestCreateRejectsKeywordWithComma(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.writer.Create(ctx, models.Song{Title: "X", Keywords: []string{"rock, pop", "live"}})
	var invalid *KeywordInvalidError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "rock, pop", invalid.Keyword)
	require.Empty(t, f.notifier.subjects)
	require.Equal(t, []string{"create:invalid"}, f.observer.outcomes)
}

func TestCreateSurvivesNotificationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp unavailable")

	id, err := f.writer.Create(ctx, models.Song{Title: "Yesterday"})
	require.NoError(t, err)

	_, err = f.reader.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.observer.notifyFailures)
}

func TestCreateIgnoresClientIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.writer.Create(ctx, models.Song{ID: 500, Version: 7, Title: "Hey Jude"})
	require.NoError(t, err)
	require.NotEqual(t, int64(500), id)

	song, err := f.reader.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0, song.Version)
}

func TestUpdateMissingSong(t *testing.T) {
	f := newFixture(t)

	_, err := f.writer.Update(context.Background(), 42, models.Changes{Rating: intPtr(1)}, 0)
	var notExists *NotExistsError
	require.ErrorAs(t, err, &notExists)
	require.Equal(t, int64(42), notExists.ID)
}

func TestUpdateAcceptsVersionAhead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.writer.Create(ctx, models.Song{Title: "Imagine"})
	require.NoError(t, err)

	version, err := f.writer.Update(ctx, id, models.Changes{Rating: intPtr(2)}, 5)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestUpdateTitleCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.writer.Create(ctx, models.Song{Title: "Imagine"})
	require.NoError(t, err)
	id, err := f.writer.Create(ctx, models.Song{Title: "Yesterday"})
	require.NoError(t, err)

	_, err = f.writer.Update(ctx, id, models.Changes{Title: strPtr("Imagine")}, 0)
	var exists *TitleExistsError
	require.ErrorAs(t, err, &exists)

	version, err := f.writer.Update(ctx, id, models.Changes{Title: strPtr("Yesterday Once More")}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestConcurrentUpdatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.writer.Create(ctx, models.Song{Title: "Imagine"})
	require.NoError(t, err)
	current, err := f.reader.FindByID(ctx, id)
	require.NoError(t, err)

	// Both writers read version 0; the store only accepts the first save.
	first := current
	first.Rating = 1
	_, err = f.store.UpdateSong(ctx, first)
	require.NoError(t, err)

	second := current
	second.Rating = 2
	_, err = f.store.UpdateSong(ctx, second)
	require.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestDeleteMissingSong(t *testing.T) {
	f := newFixture(t)

	deleted, err := f.writer.Delete(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestFindByCriteria(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, song := range []models.Song{
		{Title: "Ain't No Mountain High Enough", Artists: []models.Artist{{Name: "Marvin Gaye"}}},
		{Title: "Yesterday", Keywords: []string{"POP"}},
		{Title: "Hey Jude", Keywords: []string{"ROCK"}},
	} {
		_, err := f.writer.Create(ctx, song)
		require.NoError(t, err)
	}

	songs, err := f.reader.Find(ctx, map[string]string{"title": "a"})
	require.NoError(t, err)
	require.Len(t, songs, 2)
	require.Equal(t, "Ain't No Mountain High Enough", songs[0].Title)
	require.Equal(t, "Yesterday", songs[1].Title)

	all, err := f.reader.Find(ctx, nil)
	require.NoError(t, err)
	empty, err := f.reader.Find(ctx, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, all, empty)

	songs, err = f.reader.Find(ctx, map[string]string{"rock": "true"})
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Equal(t, "Hey Jude", songs[0].Title)
}

type failingReadStore struct {
	calls int
}

func (s *failingReadStore) FindSongByID(context.Context, int64) (models.Song, error) {
	s.calls++
	return models.Song{}, errors.New("unexpected call")
}

func (s *failingReadStore) FindSongs(context.Context, store.Criteria) ([]models.Song, error) {
	s.calls++
	return nil, errors.New("unexpected call")
}

func TestFindRejectsUnknownCriteriaWithoutQuerying(t *testing.T) {
	st := &failingReadStore{}
	reader := NewReadService(st, zerolog.Nop())

	for _, key := range []string{"unknownKey", "artists", "titel"} {
		_, err := reader.Find(context.Background(), map[string]string{key: "x"})
		var invalid *InvalidCriteriaError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, key, invalid.Key)
	}
	require.Zero(t, st.calls)
}

func TestFindRejectsUnconvertibleValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.reader.Find(context.Background(), map[string]string{"rating": "high"})
	var invalid *InvalidCriteriaError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "rating", invalid.Key)
	require.Equal(t, "high", invalid.Value)
}

func TestFindByIDRejectsNonPositiveID(t *testing.T) {
	st := &failingReadStore{}
	reader := NewReadService(st, zerolog.Nop())

	_, err := reader.FindByID(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, st.calls)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "ok", Outcome(nil))
	require.Equal(t, "not_found", Outcome(&NotExistsError{ID: 1}))
	require.Equal(t, "conflict", Outcome(&TitleExistsError{Title: "x"}))
	require.Equal(t, "outdated", Outcome(&VersionOutdatedError{ID: 1}))
	require.Equal(t, "invalid", Outcome(&KeywordInvalidError{Keyword: ","}))
	require.Equal(t, "error", Outcome(errors.New("boom")))
}
