package models

import "time"

// Kind is the release format of a song.
type Kind string

const (
	KindCD  Kind = "CD"
	KindMP3 Kind = "MP3"
)

// Valid reports whether k is one of the known formats.
func (k Kind) Valid() bool {
	switch k {
	case KindCD, KindMP3:
		return true
	}
	return false
}

// Song is the aggregate root of the catalog. ID, Version and the timestamps are
// assigned by the store and never taken from client input.
type Song struct {
	ID          int64     `json:"id" db:"id"`
	Version     int       `json:"version" db:"version"`
	Rating      int       `json:"rating" db:"rating"`
	Kind        Kind      `json:"kind,omitempty" db:"kind"`
	ReleaseDate string    `json:"releaseDate,omitempty" db:"release_date"`
	Keywords    []string  `json:"keywords" db:"keywords"`
	Title       string    `json:"title" db:"title"`
	Artists     []Artist  `json:"artists"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Artist is owned by exactly one Song and lives and dies with it.
type Artist struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	SongID int64  `json:"-" db:"song_id"`
}

// Song field names as exposed to clients, in declaration order.
const (
	FieldID          = "id"
	FieldVersion     = "version"
	FieldRating      = "rating"
	FieldKind        = "kind"
	FieldReleaseDate = "releaseDate"
	FieldKeywords    = "keywords"
	FieldTitle       = "title"
	FieldArtists     = "artists"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// FieldNames returns the top-level Song field names.
func FieldNames() []string {
	return []string{
		FieldID,
		FieldVersion,
		FieldRating,
		FieldKind,
		FieldReleaseDate,
		FieldKeywords,
		FieldTitle,
		FieldArtists,
		FieldCreatedAt,
		FieldUpdatedAt,
	}
}

// IsField reports whether name is a top-level Song field.
func IsField(name string) bool {
	for _, f := range FieldNames() {
		if f == name {
			return true
		}
	}
	return false
}

// ArtistNames returns the names of the song's artists in order.
func (s Song) ArtistNames() []string {
	names := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		names = append(names, a.Name)
	}
	return names
}

// Changes carries the content fields of an update. Nil fields are left as stored.
type Changes struct {
	Rating      *int
	Kind        *Kind
	ReleaseDate *string
	Keywords    []string
	Title       *string
}

// Apply merges c onto s. Identity, version, timestamps and artists are untouched.
func (c Changes) Apply(s Song) Song {
	if c.Rating != nil {
		s.Rating = *c.Rating
	}
	if c.Kind != nil {
		s.Kind = *c.Kind
	}
	if c.ReleaseDate != nil {
		s.ReleaseDate = *c.ReleaseDate
	}
	if c.Keywords != nil {
		s.Keywords = append([]string(nil), c.Keywords...)
	}
	if c.Title != nil {
		s.Title = *c.Title
	}
	return s
}
