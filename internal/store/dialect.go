package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect interface {
	// Name identifies the dialect and its migration set.
	Name() string
	// DriverName is the database/sql driver registered for the dialect.
	DriverName() string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// ContainsFold renders a case-insensitive substring match of expr against
	// the LIKE pattern bound at placeholder. The pattern escapes with '\'.
	ContainsFold(expr, placeholder string) string
}

var (
	// Postgres uses ILIKE and $n placeholders.
	Postgres Dialect = postgresDialect{}
	// SQLite has no ILIKE, so both sides pass through fold before LIKE.
	SQLite Dialect = sqliteDialect{}
)

// sqliteDriverName is mattn/go-sqlite3 with the fold function registered on
// every connection.
const sqliteDriverName = "sqlite3_songcatalog"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", fold, true)
		},
	})
}

// fold lower-cases text with Unicode rules. SQLite's LOWER only maps ASCII.
// NULL stays NULL.
func fold(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ToLower(t)
	case []byte:
		if t == nil {
			return nil
		}
		return strings.ToLower(string(t))
	}
	return v
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name():
		return Postgres, nil
	case SQLite.Name():
		return SQLite, nil
	}
	return nil, fmt.Errorf("unsupported database dialect %q", name)
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (postgresDialect) ContainsFold(expr, placeholder string) string {
	return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, expr, placeholder)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return sqliteDriverName }

func (sqliteDialect) Placeholder(int) string {
	return "?"
}

func (sqliteDialect) ContainsFold(expr, placeholder string) string {
	return fmt.Sprintf(`fold(%s) LIKE fold(%s) ESCAPE '\'`, expr, placeholder)
}

var numberedPlaceholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites a statement written with $n placeholders for d. Each $n must
// appear once and in ascending order.
func rebind(d Dialect, query string) string {
	if d.Name() == Postgres.Name() {
		return query
	}
	n := 0
	return numberedPlaceholder.ReplaceAllStringFunc(query, func(string) string {
		n++
		return d.Placeholder(n)
	})
}
