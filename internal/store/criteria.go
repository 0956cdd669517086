package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"songcatalog/internal/models"
)

// Criteria maps search keys to the raw values supplied by a client.
type Criteria map[string]string

// Search keys that are not Song fields.
const (
	// CriterionArtist matches artist names by case-insensitive substring.
	CriterionArtist = "artist"
	// CriterionRock and CriterionPop select songs tagged with the keyword.
	CriterionRock = "rock"
	CriterionPop  = "pop"
)

// UnknownCriterionError reports a key without a registered filter.
type UnknownCriterionError struct {
	Key string
}

func (e *UnknownCriterionError) Error() string {
	return fmt.Sprintf("unknown search criterion %q", e.Key)
}

// InvalidValueError reports a value that cannot be bound to its column.
type InvalidValueError struct {
	Key   string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for search criterion %q", e.Value, e.Key)
}

// SongQuery is a parameterized statement selecting songs joined with their artists.
type SongQuery struct {
	SQL  string
	Args []any
}

const selectSongs = `SELECT s.id, s.version, s.rating, s.kind, s.release_date, s.keywords, s.title, s.created_at, s.updated_at, a.id, a.name
FROM song s
LEFT JOIN artist a ON a.song_id = s.id`

const orderSongs = ` ORDER BY s.id, a.id`

type filterFunc func(b *queryBuilder, key, value string) error

type filter struct {
	key   string
	apply filterFunc
}

// filters is applied in order, so the generated SQL is stable for a given set of keys.
var filters = []filter{
	{models.FieldTitle, containsFold("s.title")},
	{CriterionArtist, artistContains},
	{CriterionRock, keywordTag("ROCK")},
	{CriterionPop, keywordTag("POP")},
	{models.FieldID, equalsInt("s.id")},
	{models.FieldVersion, equalsInt("s.version")},
	{models.FieldRating, equalsInt("s.rating")},
	{models.FieldKind, equalsString("s.kind")},
	{models.FieldReleaseDate, equalsString("s.release_date")},
	{models.FieldKeywords, equalsString("s.keywords")},
	{models.FieldCreatedAt, equalsTime("s.created_at")},
	{models.FieldUpdatedAt, equalsTime("s.updated_at")},
}

// IsCriterion reports whether key has a registered filter.
func IsCriterion(key string) bool {
	for _, f := range filters {
		if f.key == key {
			return true
		}
	}
	return false
}

// IsPseudoCriterion reports whether key is a search key that is not a Song field.
func IsPseudoCriterion(key string) bool {
	switch key {
	case CriterionArtist, CriterionRock, CriterionPop:
		return true
	}
	return false
}

// BuildByID selects one song and its artists.
func BuildByID(d Dialect, id int64) SongQuery {
	b := &queryBuilder{dialect: d}
	b.where = append(b.where, "s.id = "+b.bind(id))
	return b.query()
}

// BuildByCriteria selects all songs matching every criterion. Empty criteria
// select all songs.
func BuildByCriteria(d Dialect, criteria Criteria) (SongQuery, error) {
	for key := range criteria {
		if !IsCriterion(key) {
			return SongQuery{}, &UnknownCriterionError{Key: key}
		}
	}

	b := &queryBuilder{dialect: d}
	for _, f := range filters {
		value, ok := criteria[f.key]
		if !ok {
			continue
		}
		if err := f.apply(b, f.key, value); err != nil {
			return SongQuery{}, err
		}
	}
	return b.query(), nil
}

type queryBuilder struct {
	dialect Dialect
	where   []string
	args    []any
}

func (b *queryBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *queryBuilder) query() SongQuery {
	var sb strings.Builder
	sb.WriteString(selectSongs)
	if len(b.where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	sb.WriteString(orderSongs)
	return SongQuery{SQL: sb.String(), Args: b.args}
}

func containsFold(column string) filterFunc {
	return func(b *queryBuilder, _, value string) error {
		b.where = append(b.where, b.dialect.ContainsFold(column, b.bind(likePattern(value))))
		return nil
	}
}

func artistContains(b *queryBuilder, _, value string) error {
	match := b.dialect.ContainsFold("af.name", b.bind(likePattern(value)))
	b.where = append(b.where, "EXISTS (SELECT 1 FROM artist af WHERE af.song_id = s.id AND "+match+")")
	return nil
}

// keywordTag only filters for the literal value "true"; anything else leaves the
// result unrestricted.
func keywordTag(tag string) filterFunc {
	return func(b *queryBuilder, _, value string) error {
		if value != "true" {
			return nil
		}
		b.where = append(b.where, b.dialect.ContainsFold("s.keywords", b.bind(likePattern(tag))))
		return nil
	}
}

func equalsInt(column string) filterFunc {
	return func(b *queryBuilder, key, value string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return &InvalidValueError{Key: key, Value: value}
		}
		b.where = append(b.where, column+" = "+b.bind(n))
		return nil
	}
}

func equalsString(column string) filterFunc {
	return func(b *queryBuilder, _, value string) error {
		b.where = append(b.where, column+" = "+b.bind(value))
		return nil
	}
}

func equalsTime(column string) filterFunc {
	return func(b *queryBuilder, key, value string) error {
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return &InvalidValueError{Key: key, Value: value}
		}
		b.where = append(b.where, column+" = "+b.bind(t.UTC()))
		return nil
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
