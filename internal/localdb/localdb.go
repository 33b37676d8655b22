// Package localdb opens the device-local SQLite database shared by the set-log queue
// and the today snapshot cache.
package localdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDisabled is returned by Open when no storage path is configured.
var ErrDisabled = errors.New("local storage disabled")

// DB is an opened, migrated local database.
type DB struct {
	sql *sql.DB
}

// Open creates or opens the SQLite file at path and applies all pending migrations.
//
// The connection is configured with:
//   - WAL journal so readers never block the writer
//   - synchronous=FULL: a committed write survives power loss before Open's callers
//     report "saved locally"
//   - a 5 second busy timeout
//
// Migrations only ever add tables and indexes, so opening a file written by an older
// build upgrades it in place without touching existing rows.
func Open(ctx context.Context, path string) (*DB, error) {
	return OpenAt(ctx, path, 0)
}

// OpenAt is Open stopped at migration version upTo (0 means latest). It exists to
// stage files in an older layout, e.g. to exercise upgrades.
func OpenAt(ctx context.Context, path string, upTo int64) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrDisabled
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	fsys, err := migrations()
	if err == nil {
		_, err = migrate.Apply(ctx, db, goose.DialectSQLite3, fsys, upTo)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between our own
	// goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{sql: db}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "FULL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

func migrations() (fs.FS, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	return fsys, nil
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB { return d.sql }

// Version returns the applied migration version.
func (d *DB) Version(ctx context.Context) (int64, error) {
	fsys, err := migrations()
	if err != nil {
		return 0, err
	}
	return migrate.Version(ctx, d.sql, goose.DialectSQLite3, fsys)
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
