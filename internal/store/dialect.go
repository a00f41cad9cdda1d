package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects the SQL flavour a Store speaks. Queries are written once
// with Postgres $N placeholders and rebound for SQLite.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflicting record")
	// ErrInvalidReference is returned when a write points at a missing parent.
	ErrInvalidReference = errors.New("referenced record does not exist")
)

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?$1")
}

// sqliteTimeLayout keeps every fraction digit so stored text compares in
// time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeArg encodes t for a bind parameter. SQLite stores it as fixed-width
// UTC text.
func (d Dialect) timeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// classify maps driver constraint errors onto the package sentinels and
// leaves everything else untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidReference, pgErr.ConstraintName)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%s: %w", op, ErrInvalidReference)
		case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// timestamp scans a column that one driver returns as time.Time and the
// other may return as text.
type timestamp struct {
	t *time.Time
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}

func (ts timestamp) parse(value string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			*ts.t = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognised value %q", value)
}
