package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound signals a missing song.
	ErrNotFound = errors.New("song not found")
	// ErrVersionConflict means the stored version moved on between read and write.
	ErrVersionConflict = errors.New("song version conflict")
	// ErrDuplicateTitle signals a title that is already stored.
	ErrDuplicateTitle = errors.New("song title already exists")
	// ErrDuplicateArtist signals an artist name that is already stored.
	ErrDuplicateArtist = errors.New("artist name already exists")
)

// DuplicateArtistError names the artist whose name is already stored.
type DuplicateArtistError struct {
	Name string
}

func (e *DuplicateArtistError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateArtist, e.Name)
}

func (e *DuplicateArtistError) Unwrap() error {
	return ErrDuplicateArtist
}

// Store provides song persistence over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New sets up a Store using the provided database handle and dialect.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dialect returns the SQL dialect the store speaks.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
