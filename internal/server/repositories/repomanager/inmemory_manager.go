package repomanager

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/models"
	"github.com/dbrusnev/notelock/internal/server/repositories/documents"
	"github.com/dbrusnev/notelock/internal/server/repositories/refreshtokens"
	"github.com/dbrusnev/notelock/internal/server/repositories/users"
)

// InMemoryRepositoryManager backs the services with plain maps.
// Used in tests and for running the server without a database.
type InMemoryRepositoryManager struct {
	users         *inMemoryUserRepository
	refreshTokens *inMemoryRefreshTokenRepository
	documents     *inMemoryDocumentRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:         &inMemoryUserRepository{users: make(map[string]models.User)},
		refreshTokens: &inMemoryRefreshTokenRepository{tokens: make(map[string]models.RefreshToken)},
		documents:     &inMemoryDocumentRepository{docs: make(map[string]models.Document)},
	}
}

func (m *InMemoryRepositoryManager) Conn() *sql.DB { return nil }

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Users() users.Repository { return m.users }

func (m *InMemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.refreshTokens
}

func (m *InMemoryRepositoryManager) Documents() documents.Repository { return m.documents }

type inMemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (r *inMemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = *user
	return user, nil
}

func (r *inMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *inMemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *inMemoryUserRepository) UpdateEmail(ctx context.Context, id, newEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Email = newEmail
	u.EmailVerified = false
	r.users[id] = u
	return nil
}

func (r *inMemoryUserRepository) UpdateVerifier(ctx context.Context, id string, salt, verifier []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Salt = salt
	u.Verifier = verifier
	r.users[id] = u
	return nil
}

func (r *inMemoryUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.EmailVerified = true
	r.users[id] = u
	return nil
}

func (r *inMemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type inMemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func (r *inMemoryRefreshTokenRepository) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = models.RefreshToken{Token: token, UserID: userID, ExpiresAt: time.Now().Add(validity)}
	return nil
}

func (r *inMemoryRefreshTokenRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rt, nil
}

func (r *inMemoryRefreshTokenRepository) Rotate(ctx context.Context, oldToken, userID, newToken string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[oldToken]; !ok {
		return common.ErrNotFound
	}
	delete(r.tokens, oldToken)
	r.tokens[newToken] = models.RefreshToken{Token: newToken, UserID: userID, ExpiresAt: time.Now().Add(validity)}
	return nil
}

func (r *inMemoryRefreshTokenRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *inMemoryRefreshTokenRepository) DeleteForUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, rt := range r.tokens {
		if rt.UserID == userID {
			delete(r.tokens, t)
		}
	}
	return nil
}

type inMemoryDocumentRepository struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func (r *inMemoryDocumentRepository) key(collection, id string) string {
	return collection + "/" + id
}

func (r *inMemoryDocumentRepository) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[r.key(collection, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &doc, nil
}

func (r *inMemoryDocumentRepository) Insert(ctx context.Context, doc *models.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	stored := *doc
	stored.ID = id
	stored.Fields = copyFields(doc.Fields)
	r.docs[r.key(doc.Collection, id)] = stored
	return id, nil
}

func (r *inMemoryDocumentRepository) Upsert(ctx context.Context, doc *models.Document, merge bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(doc.Collection, doc.ID)
	if existing, ok := r.docs[k]; ok && merge {
		for key, v := range doc.Fields {
			existing.Fields[key] = v
		}
		r.docs[k] = existing
		return nil
	}
	stored := *doc
	stored.Fields = copyFields(doc.Fields)
	r.docs[k] = stored
	return nil
}

func (r *inMemoryDocumentRepository) Delete(ctx context.Context, collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(collection, id)
	if _, ok := r.docs[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.docs, k)
	return nil
}

func (r *inMemoryDocumentRepository) QueryByUser(ctx context.Context, collection, userID string) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, doc := range r.docs {
		if doc.Collection == collection && doc.UserID == userID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
