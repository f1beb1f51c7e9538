package documents

import (
	"context"

	"github.com/dbrusnev/notelock/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, collection, id string) (*models.Document, error)
	// Insert stores a new document under a server-assigned id.
	Insert(ctx context.Context, doc *models.Document) (string, error)
	// Upsert writes the document under its given id. With merge, fields are
	// overlaid onto any existing record; otherwise the record is replaced.
	Upsert(ctx context.Context, doc *models.Document, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	QueryByUser(ctx context.Context, collection, userID string) ([]models.Document, error)
}
