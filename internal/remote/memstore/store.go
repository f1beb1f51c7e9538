// Package memstore provides in-memory implementations of the remote.Store
// and remote.Auth contracts. They back the client test suites and local
// development without a server, and define the reference semantics for
// server timestamps, queries and watch streams.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbrusnev/notelock/internal/remote"
)

// Store is an in-memory remote.Store. Server timestamps are assigned at
// seconds resolution, matching the remote contract.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]remote.Document
	watchers    []*watcher
	clock       func() time.Time
}

type watcher struct {
	collection string
	preds      []remote.Predicate
	ch         chan []remote.Document
	done       chan struct{}
}

func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]remote.Document),
		clock:       time.Now,
	}
}

// SetClock replaces the timestamp source. Test helper.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields remote.Document, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.coll(collection)
	doc := coll[id]
	if doc == nil || !merge {
		doc = make(remote.Document, len(fields))
	}
	for k, v := range fields {
		doc[k] = s.resolve(v)
	}
	coll[id] = doc

	s.notifyLocked(collection)
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields remote.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	doc := make(remote.Document, len(fields))
	for k, v := range fields {
		doc[k] = s.resolve(v)
	}
	s.coll(collection)[id] = doc

	s.notifyLocked(collection)
	return id, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.coll(collection), id)
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, preds ...remote.Predicate) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, preds), nil
}

func (s *Store) Watch(ctx context.Context, collection string, preds ...remote.Predicate) (*remote.WatchSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &watcher{
		collection: collection,
		preds:      preds,
		ch:         make(chan []remote.Document, 16),
		done:       make(chan struct{}),
	}
	s.watchers = append(s.watchers, w)

	// initial snapshot, then one push per change
	w.push(s.queryLocked(collection, preds))

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.watchers {
			if other == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				close(w.done)
				close(w.ch)
				return
			}
		}
	}
	return remote.NewWatchSubscription(w.ch, stop), nil
}

func (s *Store) coll(name string) map[string]remote.Document {
	if s.collections[name] == nil {
		s.collections[name] = make(map[string]remote.Document)
	}
	return s.collections[name]
}

// resolve substitutes the ServerTimestamp sentinel with the current time,
// truncated to whole seconds.
func (s *Store) resolve(v any) any {
	if v == remote.ServerTimestamp {
		return s.clock().UTC().Truncate(time.Second)
	}
	return v
}

func (s *Store) queryLocked(collection string, preds []remote.Predicate) []remote.Document {
	result := make([]remote.Document, 0)
	for id, doc := range s.collections[collection] {
		if matches(doc, preds) {
			result = append(result, withID(doc, id))
		}
	}
	return result
}

func (s *Store) notifyLocked(collection string) {
	for _, w := range s.watchers {
		if w.collection == collection {
			w.push(s.queryLocked(collection, w.preds))
		}
	}
}

func (w *watcher) push(docs []remote.Document) {
	select {
	case <-w.done:
	case w.ch <- docs:
	default:
		// slow consumer: drop this snapshot, a newer one follows
	}
}

func matches(doc remote.Document, preds []remote.Predicate) bool {
	for _, p := range preds {
		if p.Op != "==" {
			return false
		}
		if doc[p.Field] != p.Value {
			return false
		}
	}
	return true
}

func withID(doc remote.Document, id string) remote.Document {
	out := make(remote.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}
