package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"songcatalog/internal/models"
)

// FindSongByID returns a single song with its artists.
func (s *Store) FindSongByID(ctx context.Context, id int64) (models.Song, error) {
	q := BuildByID(s.dialect, id)
	songs, err := s.querySongs(ctx, q)
	if err != nil {
		return models.Song{}, err
	}
	if len(songs) == 0 {
		return models.Song{}, ErrNotFound
	}
	return songs[0], nil
}

// FindSongs returns the songs matching every criterion, ordered by id.
func (s *Store) FindSongs(ctx context.Context, criteria Criteria) ([]models.Song, error) {
	q, err := BuildByCriteria(s.dialect, criteria)
	if err != nil {
		return nil, err
	}
	return s.querySongs(ctx, q)
}

// keywordSeparator joins keywords in the keywords column.
const keywordSeparator = ","

// InvalidKeywordError reports a keyword that would not survive the round trip
// through the keywords column.
type InvalidKeywordError struct {
	Keyword string
}

func (e *InvalidKeywordError) Error() string {
	return fmt.Sprintf("keyword %q must be non-empty and must not contain %q", e.Keyword, keywordSeparator)
}

func checkKeywords(keywords []string) error {
	for _, k := range keywords {
		if k == "" || strings.Contains(k, keywordSeparator) {
			return &InvalidKeywordError{Keyword: k}
		}
	}
	return nil
}

// InsertSong stores a new song and its artists in one transaction. The returned
// song carries the assigned ids, version 0 and the timestamps.
func (s *Store) InsertSong(ctx context.Context, song models.Song) (models.Song, error) {
	if err := checkKeywords(song.Keywords); err != nil {
		return models.Song{}, err
	}
	now := s.now()
	song.Version = 0
	song.CreatedAt = now
	song.UpdatedAt = now

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, rebind(s.dialect, `
			INSERT INTO song (version, rating, kind, release_date, keywords, title, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`), song.Version, song.Rating, nullString(string(song.Kind)), nullString(song.ReleaseDate),
			joinKeywords(song.Keywords), song.Title, song.CreatedAt, song.UpdatedAt).Scan(&song.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTitle
			}
			return fmt.Errorf("insert song: %w", err)
		}

		for i := range song.Artists {
			artist := &song.Artists[i]
			artist.SongID = song.ID
			err := tx.QueryRowContext(ctx, rebind(s.dialect, `
				INSERT INTO artist (name, song_id)
				VALUES ($1, $2)
				RETURNING id
			`), artist.Name, song.ID).Scan(&artist.ID)
			if err != nil {
				if isUniqueViolation(err) {
					return &DuplicateArtistError{Name: artist.Name}
				}
				return fmt.Errorf("insert artist: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Song{}, err
	}
	return song, nil
}

// UpdateSong writes the content fields of song if the stored version still
// equals song.Version, and returns the incremented version.
func (s *Store) UpdateSong(ctx context.Context, song models.Song) (int, error) {
	if err := checkKeywords(song.Keywords); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, rebind(s.dialect, `
		UPDATE song
		SET rating = $1, kind = $2, release_date = $3, keywords = $4, title = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`), song.Rating, nullString(string(song.Kind)), nullString(song.ReleaseDate), joinKeywords(song.Keywords),
		song.Title, s.now(), song.ID, song.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateTitle
		}
		return 0, fmt.Errorf("update song: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update song: %w", err)
	}
	if affected == 0 {
		return 0, ErrVersionConflict
	}
	return song.Version + 1, nil
}

// DeleteSong removes the song's artists and then the song in one transaction.
// It reports whether a song row was deleted.
func (s *Store) DeleteSong(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, rebind(s.dialect, `
			DELETE FROM artist
			WHERE song_id = $1
		`), id); err != nil {
			return fmt.Errorf("delete artists: %w", err)
		}

		res, err := tx.ExecContext(ctx, rebind(s.dialect, `
			DELETE FROM song
			WHERE id = $1
		`), id)
		if err != nil {
			return fmt.Errorf("delete song: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete song: %w", err)
		}
		deleted = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *Store) querySongs(ctx context.Context, q SongQuery) ([]models.Song, error) {
	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	songs := []models.Song{}
	for rows.Next() {
		var (
			song        models.Song
			kind        sql.NullString
			releaseDate sql.NullString
			keywords    sql.NullString
			artistID    sql.NullInt64
			artistName  sql.NullString
		)
		if err := rows.Scan(&song.ID, &song.Version, &song.Rating, &kind, &releaseDate, &keywords, &song.Title,
			&song.CreatedAt, &song.UpdatedAt, &artistID, &artistName); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}

		// Rows arrive ordered by song id, so a song's artists are adjacent.
		if n := len(songs); n == 0 || songs[n-1].ID != song.ID {
			song.Kind = models.Kind(kind.String)
			song.ReleaseDate = releaseDate.String
			song.Keywords = splitKeywords(keywords.String)
			song.Artists = []models.Artist{}
			songs = append(songs, song)
		}
		if artistID.Valid {
			last := &songs[len(songs)-1]
			last.Artists = append(last.Artists, models.Artist{
				ID:     artistID.Int64,
				Name:   artistName.String,
				SongID: last.ID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}

	return songs, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func joinKeywords(keywords []string) sql.NullString {
	return nullString(strings.Join(keywords, keywordSeparator))
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, keywordSeparator)
}

// CountSongs returns the number of stored songs.
func (s *Store) CountSongs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM song`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count songs: %w", err)
	}
	return count, nil
}
