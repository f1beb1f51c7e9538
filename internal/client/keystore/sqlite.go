package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbrusnev/notelock/internal/dbx"
)

// SQLiteKeyStore implements KeyStore over a local SQLite database.
type SQLiteKeyStore struct {
	db dbx.DBTX
}

func NewSQLiteKeyStore(db dbx.DBTX) *SQLiteKeyStore {
	return &SQLiteKeyStore{db: db}
}

func (r *SQLiteKeyStore) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM local_store WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get local_store[%s]: %w", name, err)
	}
	return value, nil
}

func (r *SQLiteKeyStore) Set(ctx context.Context, name, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO local_store (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("failed to set local_store[%s]: %w", name, err)
	}
	return nil
}

func (r *SQLiteKeyStore) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM local_store WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete local_store[%s]: %w", name, err)
	}
	return nil
}
