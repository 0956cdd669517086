package songs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by reads for an id that is not stored.
var ErrNotFound = errors.New("song not found")

// TitleExistsError rejects a title that another song already carries.
type TitleExistsError struct {
	Title string
}

func (e *TitleExistsError) Error() string {
	return fmt.Sprintf("title %q already exists", e.Title)
}

// ArtistExistsError rejects an artist name that is already stored.
type ArtistExistsError struct {
	Name string
}

func (e *ArtistExistsError) Error() string {
	return fmt.Sprintf("artist %q already exists", e.Name)
}

// KeywordInvalidError rejects an empty keyword or one containing a comma.
type KeywordInvalidError struct {
	Keyword string
}

func (e *KeywordInvalidError) Error() string {
	return fmt.Sprintf("invalid keyword %q", e.Keyword)
}

// VersionInvalidError rejects a concurrency token that is not a quoted integer.
type VersionInvalidError struct {
	Token string
}

func (e *VersionInvalidError) Error() string {
	return fmt.Sprintf("invalid version token %q", e.Token)
}

// VersionOutdatedError rejects an update carrying a version older than the stored one.
type VersionOutdatedError struct {
	ID      int64
	Version int
}

func (e *VersionOutdatedError) Error() string {
	return fmt.Sprintf("version %d of song %d is outdated", e.Version, e.ID)
}

// NotExistsError rejects an update of an id that is not stored.
type NotExistsError struct {
	ID int64
}

func (e *NotExistsError) Error() string {
	return fmt.Sprintf("song %d does not exist", e.ID)
}

// InvalidCriteriaError rejects a search key that is not searchable, or a value
// that does not fit its field.
type InvalidCriteriaError struct {
	Key   string
	Value string
}

func (e *InvalidCriteriaError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid value %q for search criterion %q", e.Value, e.Key)
	}
	return fmt.Sprintf("invalid search criterion %q", e.Key)
}
