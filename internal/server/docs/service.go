// Package docs exposes the schemaless document API on top of the documents
// repository: ownership checks, server-timestamp substitution, and change
// notifications to the watch hub.
package docs

import (
	"context"
	"errors"
	"time"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/models"
	"github.com/dbrusnev/notelock/internal/server/repositories/documents"
	"github.com/dbrusnev/notelock/internal/server/watch"
)

// TimestampSentinel marks a field value the server replaces with its own
// clock on write. The wire form is {"__serverTimestamp__": true}.
const TimestampSentinel = "__serverTimestamp__"

type Service struct {
	repo documents.Repository
	hub  *watch.Hub
	now  func() time.Time
}

func NewService(repo documents.Repository, hub *watch.Hub) *Service {
	return &Service{repo: repo, hub: hub, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID, collection, id string) (map[string]any, error) {
	doc, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, common.ErrUnauthorized
	}
	return withID(doc), nil
}

func (s *Service) Set(ctx context.Context, userID, collection, id string, fields map[string]any, merge bool) error {
	existing, err := s.repo.Get(ctx, collection, id)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return common.ErrUnauthorized
		}
	case errors.Is(err, common.ErrNotFound):
	default:
		return err
	}

	doc := &models.Document{
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Fields:     s.resolveTimestamps(fields),
	}
	if err := s.repo.Upsert(ctx, doc, merge); err != nil {
		return err
	}

	s.hub.Publish(collection, userID)
	return nil
}

func (s *Service) Add(ctx context.Context, userID, collection string, fields map[string]any) (string, error) {
	doc := &models.Document{
		Collection: collection,
		UserID:     userID,
		Fields:     s.resolveTimestamps(fields),
	}
	id, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return "", err
	}

	s.hub.Publish(collection, userID)
	return id, nil
}

// Delete removes the document. Deleting an absent document is a no-op;
// deleting someone else's is refused.
func (s *Service) Delete(ctx context.Context, userID, collection, id string) error {
	existing, err := s.repo.Get(ctx, collection, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return common.ErrUnauthorized
	}

	if err := s.repo.Delete(ctx, collection, id); err != nil {
		return err
	}

	s.hub.Publish(collection, userID)
	return nil
}

func (s *Service) Query(ctx context.Context, userID, collection string) ([]map[string]any, error) {
	docs, err := s.repo.QueryByUser(ctx, collection, userID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		out = append(out, withID(&docs[i]))
	}
	return out, nil
}

// resolveTimestamps returns a copy of fields in which every sentinel value
// has been replaced by the current server time at seconds resolution.
func (s *Service) resolveTimestamps(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	ts := s.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	for k, v := range fields {
		if isSentinel(v) {
			out[k] = ts
			continue
		}
		out[k] = v
	}
	return out
}

func isSentinel(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	flag, ok := m[TimestampSentinel].(bool)
	return ok && flag && len(m) == 1
}

func withID(doc *models.Document) map[string]any {
	out := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		out[k] = v
	}
	out["id"] = doc.ID
	return out
}
