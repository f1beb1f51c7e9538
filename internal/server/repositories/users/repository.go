package users

import (
	"context"

	"github.com/dbrusnev/notelock/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateEmail(ctx context.Context, id, newEmail string) error
	UpdateVerifier(ctx context.Context, id string, salt, verifier []byte) error
	MarkEmailVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
