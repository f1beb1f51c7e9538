package refreshtokens

import (
	"context"
	"time"

	"github.com/dbrusnev/notelock/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, token string, validity time.Duration) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	// Rotate atomically consumes oldToken and stores newToken for the same
	// user. Returns common.ErrNotFound when oldToken was already spent.
	Rotate(ctx context.Context, oldToken, userID, newToken string, validity time.Duration) error
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID string) error
}
