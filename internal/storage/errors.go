package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"kanakku/internal/core"
)

var errVersionMismatch = errors.New("stored version differs")

// mapError turns driver failures into typed errors. Lock contention,
// serialization failures and unique key violations are conflicts.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFoundf(op, "not found")
	}
	if isConflict(err) {
		return core.Conflict(op, err)
	}
	return core.Classify(op, err)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.UniqueViolation:
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// expectRow reports a conflict when a compare-and-swap write matched no row.
func expectRow(op string, res sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n != 1 {
		return core.Conflict(op, errVersionMismatch)
	}
	return nil
}

// timestampLayout is fixed width so SQLite text timestamps sort by time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d Dialect) timestamp(t time.Time) any {
	if d == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(timestampLayout)
}

// timeColumn scans TIMESTAMPTZ values and SQLite text timestamps alike.
type timeColumn struct{ t *time.Time }

func (c timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.t = time.Time{}
	case time.Time:
		*c.t = v.UTC()
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (c timeColumn) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*c.t = t.UTC()
	return nil
}

// nullable stores "" as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
