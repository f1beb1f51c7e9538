// Package remote defines the contracts of the two external collaborators the
// NoteLock client depends on: an opaque document store exposing CRUD, query
// and watch primitives, and an authentication provider with a push-based
// user-state stream. The client core never sees past these interfaces; every
// value it writes through them is already ciphertext.
package remote

import (
	"context"
	"errors"
	"time"
)

// Collections used by the client. The server treats them as opaque names.
const (
	NotesCollection = "notes"
	ListsCollection = "lists"
	KeysCollection  = "keys"
)

var (
	ErrNotFound         = errors.New("remote: document not found")
	ErrPermissionDenied = errors.New("remote: permission denied")
	ErrUnauthenticated  = errors.New("remote: unauthenticated")
	ErrUnavailable      = errors.New("remote: server unavailable")
)

// Document is a schemaless record as stored remotely. Implementations of
// Store include the document id under the "id" key on reads.
type Document map[string]any

// serverTimestamp is the sentinel type for ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value that instructs the store to
// substitute a server-assigned timestamp on write. Server timestamps are
// monotonic enough for created-before/after comparisons at seconds
// resolution.
var ServerTimestamp = serverTimestamp{}

// MarshalJSON encodes the sentinel in its wire form, understood by the
// HTTP backend.
func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{"__serverTimestamp__":true}`), nil
}

// Predicate is a single field comparison applied to a query or watch.
type Predicate struct {
	Field string
	Op    string
	Value any
}

// Where builds a Predicate. Supported operators depend on the backing store;
// the client only uses "==".
func Where(field, op string, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Store is the opaque remote document store.
//
// Contract:
//   - Get returns ErrNotFound for an absent document.
//   - Set with merge=false replaces the document; merge=true overlays fields.
//   - Add assigns and returns a new document id.
//   - Query returns all matching documents, each including its "id".
//   - Watch pushes the full matching result set on every change until the
//     subscription is cancelled.
//
// All methods must honor context cancellation.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, fields Document, merge bool) error
	Add(ctx context.Context, collection string, fields Document) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, preds ...Predicate) ([]Document, error)
	Watch(ctx context.Context, collection string, preds ...Predicate) (*WatchSubscription, error)
}

// WatchSubscription is a cancellable handle on a document watch stream.
type WatchSubscription struct {
	// C delivers the full matching result set after every remote change.
	// It is closed when the subscription ends.
	C <-chan []Document

	stop func()
}

// NewWatchSubscription wires a delivery channel to its cancel function.
// Intended for Store implementations.
func NewWatchSubscription(c <-chan []Document, stop func()) *WatchSubscription {
	return &WatchSubscription{C: c, stop: stop}
}

// Unsubscribe cancels the stream. Safe to call more than once.
func (s *WatchSubscription) Unsubscribe() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// User is the authenticated principal as reported by the auth provider.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	CreatedAt     time.Time
}

// Auth is the opaque authentication provider.
//
// OnUserChanged registers fn on a push-based, possibly-repeating stream of
// "current user or nil". fn is invoked immediately with the current state
// and again on every transition, always from a single goroutine.
type Auth interface {
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error

	CurrentUser() *User
	OnUserChanged(fn func(*User)) *AuthSubscription

	SendVerificationEmail(ctx context.Context) error
	UpdateEmail(ctx context.Context, newEmail string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	Reauthenticate(ctx context.Context, password string) error
	DeleteAccount(ctx context.Context) error
}

// AuthSubscription is a cancellable handle on the auth-state stream.
type AuthSubscription struct {
	stop func()
}

// NewAuthSubscription wraps a cancel function. Intended for Auth
// implementations.
func NewAuthSubscription(stop func()) *AuthSubscription {
	return &AuthSubscription{stop: stop}
}

// Unsubscribe detaches the listener. Safe to call more than once.
func (s *AuthSubscription) Unsubscribe() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}
