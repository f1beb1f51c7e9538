// Package session reacts to the auth provider's user-state stream: it purges
// local key material and cached content the moment the provider reports a
// sign-out, and redirects between the sign-in and main views.
package session

import (
	"context"
	"sync"

	"github.com/dbrusnev/notelock/internal/client/keyring"
	"github.com/dbrusnev/notelock/internal/client/store"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
)

// View identifies a top-level view of the application.
type View string

const (
	ViewSignIn View = "signin"
	ViewMain   View = "main"
)

// RequiresAuth reports whether a view may only be shown to a signed-in user.
func (v View) RequiresAuth() bool {
	return v == ViewMain
}

// Gate is the session gate. It holds one continuously-running subscription
// on the auth-state stream for the lifetime of the application; Stop is
// called only at teardown.
type Gate struct {
	auth     remote.Auth
	keys     *keyring.Manager
	content  *store.ContentStore
	log      logging.Logger
	navigate func(View)

	mu      sync.Mutex
	current View
	sub     *remote.AuthSubscription
}

// NewGate builds a gate. navigate is invoked whenever the gate decides the
// application must switch views; it must be cheap and non-blocking.
func NewGate(auth remote.Auth, keys *keyring.Manager, content *store.ContentStore, log logging.Logger, navigate func(View)) *Gate {
	return &Gate{
		auth:     auth,
		keys:     keys,
		content:  content,
		log:      log.With("module", "session"),
		navigate: navigate,
		current:  ViewSignIn,
	}
}

// Start subscribes to the auth-state stream. The handler fires immediately
// with the current state and again on every transition.
func (g *Gate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sub != nil {
		return
	}
	g.sub = g.auth.OnUserChanged(g.onUserChanged)
}

// Stop cancels the subscription. Application teardown only.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sub != nil {
		g.sub.Unsubscribe()
		g.sub = nil
	}
}

// SetView tells the gate which view is currently shown.
func (g *Gate) SetView(v View) {
	g.mu.Lock()
	g.current = v
	g.mu.Unlock()
}

// CurrentView returns the view the gate believes is shown.
func (g *Gate) CurrentView() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *Gate) onUserChanged(u *remote.User) {
	ctx := context.Background()

	g.mu.Lock()
	current := g.current
	g.mu.Unlock()

	if u == nil {
		// signed out: local key material and decrypted content must not
		// outlive the session
		g.keys.Clear(ctx)
		g.content.Purge(true)
		if current.RequiresAuth() {
			g.log.Info(ctx, "signed out, redirecting", "from", string(current))
			g.redirect(ViewSignIn)
		}
		return
	}

	if current == ViewSignIn {
		g.log.Info(ctx, "signed in, redirecting", "user", u.ID)
		g.redirect(ViewMain)
	}
}

func (g *Gate) redirect(v View) {
	g.SetView(v)
	if g.navigate != nil {
		g.navigate(v)
	}
}
