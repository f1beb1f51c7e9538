package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/models"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	query :=
		`SELECT collection, id, user_id, fields, created_at, updated_at FROM documents
		 WHERE collection = $1 AND id = $2
		 `

	return scanDocument(r.db.QueryRowContext(ctx, query, collection, id))
}

func (r *PostgresRepository) Insert(ctx context.Context, doc *models.Document) (string, error) {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}

	id := uuid.NewString()
	query :=
		`INSERT INTO documents (collection, id, user_id, fields)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query, doc.Collection, id, doc.UserID, fields); err != nil {
		return "", fmt.Errorf("error performing sql request: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, doc *models.Document, merge bool) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	// jsonb || is a shallow overlay, exactly the merge contract
	assign := "EXCLUDED.fields"
	if merge {
		assign = "documents.fields || EXCLUDED.fields"
	}
	query := fmt.Sprintf(
		`INSERT INTO documents (collection, id, user_id, fields)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET fields = %s, updated_at = now()
		 `, assign)

	if _, err := r.db.ExecContext(ctx, query, doc.Collection, doc.ID, doc.UserID, fields); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) QueryByUser(ctx context.Context, collection, userID string) ([]models.Document, error) {
	query :=
		`SELECT collection, id, user_id, fields, created_at, updated_at FROM documents
		 WHERE collection = $1 AND user_id = $2
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, collection, userID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading sql rows: %w", err)
	}

	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	doc := &models.Document{}
	var fields []byte
	err := row.Scan(&doc.Collection, &doc.ID, &doc.UserID, &fields, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	if err := json.Unmarshal(fields, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	return doc, nil
}
