// Package migrate applies embedded goose migrations: the server schema on Postgres
// and the device-local schema on SQLite.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/migrations"
)

// Up runs all pending server migrations against dsn.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = Apply(ctx, db, goose.DialectPostgres, migrations.FS, 0)
	return err
}

// Apply runs the migrations in fsys up to version upTo (0 means latest) and returns
// the version the database ends at.
func Apply(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, upTo int64) (int64, error) {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("migration provider: %w", err)
	}
	if upTo > 0 {
		_, err = p.UpTo(ctx, upTo)
	} else {
		_, err = p.Up(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return p.GetDBVersion(ctx)
}

// Version returns the applied version without migrating.
func Version(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS) (int64, error) {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("migration provider: %w", err)
	}
	return p.GetDBVersion(ctx)
}
