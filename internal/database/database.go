// Package database opens the service's SQLite store and brings its
// schema up to date. Foreign keys must be on: session revocation on
// user deletion rides on the cascade.
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Connection pragmas. WAL keeps reads from blocking the token-rotation
// writes; the busy timeout covers the janitor and request paths sharing
// one file.
const (
	pragmaJournalMode = "WAL"
	pragmaBusyTimeout = "5000"
	pragmaForeignKeys = "on"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open connects to the SQLite file at path, applies the pragmas, and
// migrates the schema. ":memory:" works for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite at %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", pragmaJournalMode)
	params.Set("_busy_timeout", pragmaBusyTimeout)
	params.Set("_foreign_keys", pragmaForeignKeys)
	return path + "?" + params.Encode()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
