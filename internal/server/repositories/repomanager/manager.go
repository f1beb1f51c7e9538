package repomanager

import (
	"context"
	"database/sql"

	"github.com/dbrusnev/notelock/internal/server/repositories/documents"
	"github.com/dbrusnev/notelock/internal/server/repositories/refreshtokens"
	"github.com/dbrusnev/notelock/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
	Documents() documents.Repository
}
