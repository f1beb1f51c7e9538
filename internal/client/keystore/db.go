package keystore

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/dbrusnev/notelock/internal/client/keystore/migrations"
)

// Open opens (creating if necessary) the local key-store database at dsn and
// runs any pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
