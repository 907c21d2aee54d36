// Package storage is the SQL ledger store. The same queries run on SQLite
// (modernc.org/sqlite) and on Postgres (pgx through database/sql); schema
// changes ship as embedded golang-migrate migrations per dialect.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kanakku/internal/ledger"
	"kanakku/internal/log"

	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// rebind turns ? placeholders into $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements ledger.Store on a database/sql pool.
type SQLStore struct {
	reader
	db *sql.DB
}

var _ ledger.Store = (*SQLStore)(nil)

// SQLiteDSN adds the pragmas the store relies on: writers wait for the lock
// instead of failing, and transactions take the write lock when they begin.
func SQLiteDSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

// OpenSQLite opens (creating if needed) the database file at dbPath and
// migrates it.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(ctx, DialectSQLite, SQLiteDSN(dbPath))
}

// OpenPostgres connects to databaseURL and migrates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	return open(ctx, DialectPostgres, databaseURL)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Ledger store ready",
		log.FieldComponent, log.ComponentStorage, "dialect", string(dialect))

	return &SQLStore{reader: reader{q: db, dialect: dialect}, db: db}, nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Atomic runs fn inside one database transaction. Any error from fn rolls
// the transaction back.
func (s *SQLStore) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("storage.begin", err)
	}
	defer tx.Rollback()

	if err := fn(&writer{reader{q: tx, dialect: s.dialect}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("storage.commit", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
