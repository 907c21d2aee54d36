package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema of dsn up to date. The migration source is
// picked by dialect.
func RunMigrations(dialect Dialect, dsn string) error {
	// Create a separate connection for migrations: the migrate driver closes it.
	migrateDB, err := openDB(dialect, dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	case DialectPostgres:
		driver, err = pgxmigrate.WithInstance(migrateDB, &pgxmigrate.Config{})
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func openDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectSQLite:
		return sql.Open("sqlite", dsn)
	case DialectPostgres:
		config, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		return stdlib.OpenDB(*config), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
