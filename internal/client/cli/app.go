package cli

import (
	"bufio"
	"context"
	"os"

	_ "modernc.org/sqlite"

	"github.com/dbrusnev/notelock/internal/client/config"
	"github.com/dbrusnev/notelock/internal/client/export"
	"github.com/dbrusnev/notelock/internal/client/keyring"
	"github.com/dbrusnev/notelock/internal/client/keystore"
	"github.com/dbrusnev/notelock/internal/client/services"
	"github.com/dbrusnev/notelock/internal/client/session"
	"github.com/dbrusnev/notelock/internal/client/store"
	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
	"github.com/dbrusnev/notelock/internal/remote/httpstore"
)

type App struct {
	config   *config.Config
	store    remote.Store
	auth     remote.Auth
	keys     *keyring.Manager
	cache    *store.ContentStore
	notes    *services.NotesService
	gate     *session.Gate
	exporter *export.Client
	local    keystore.KeyStore
	resume   func(ctx context.Context, refreshToken string) (*remote.User, error)
	log      logging.Logger
	reader   *bufio.Reader

	stopWatch func()
	closers   []func()
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := keystore.Open(ctx, c.KeyStoreDSN)
	if err != nil {
		return nil, err
	}

	rc := httpstore.NewClient(c.ServerEndpointAddr, c.RequestTimeout, log)
	local := keystore.NewSQLiteKeyStore(db)
	rc.PersistSession(func(token string) {
		pctx := context.Background()
		var err error
		if token == "" {
			err = local.Delete(pctx, keystore.SessionTokenEntry)
		} else {
			err = local.Set(pctx, keystore.SessionTokenEntry, token)
		}
		if err != nil {
			log.Error(pctx, "persisting session token", "err", err)
		}
	})

	cache := store.New()
	keys := keyring.NewManager(rc, rc, local, log)

	a := &App{
		config:   c,
		store:    rc,
		auth:     rc,
		keys:     keys,
		cache:    cache,
		notes:    services.NewNotesService(rc, keys, cache, log),
		exporter: export.NewClient(c.ExportEndpointAddr),
		local:    local,
		resume:   rc.ResumeSession,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		closers:  []func(){rc.Close, func() { _ = db.Close() }},
	}
	a.gate = session.NewGate(rc, keys, cache, log, a.onNavigate)
	return a, nil
}

// Run starts the session gate and the REPL and blocks until the user exits
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	// restore must finish before the gate subscribes: the gate purges key
	// material on its initial event when no user is signed in yet
	a.restoreSession(ctx)
	a.gate.Start()
	defer a.teardown()
	a.Root(ctx)
}

// restoreSession re-enters the previous session without a password when both
// the cached user key and a refresh token survived the last run. Any failure
// falls back to the signed-out state; the user just logs in again.
func (a *App) restoreSession(ctx context.Context) bool {
	token, err := a.local.Get(ctx, keystore.SessionTokenEntry)
	if err != nil || token == "" {
		return false
	}

	user, err := a.resume(ctx, token)
	if err != nil {
		a.log.Warn(ctx, "session restore failed", "err", err)
		a.keys.Clear(ctx)
		return false
	}

	restored, err := a.keys.Restore(ctx)
	if err != nil || !restored {
		// a session without the content key is useless
		_ = a.keys.SignOut(ctx)
		return false
	}

	if err := a.startSession(ctx); err != nil {
		a.log.Warn(ctx, "loading content after restore", "err", err)
		_ = a.keys.SignOut(ctx)
		return false
	}

	printlnFn("Welcome back, " + user.Email + "!")
	return true
}

func (a *App) teardown() {
	a.stopWatching()
	a.gate.Stop()
	for _, fn := range a.closers {
		fn()
	}
}

// onNavigate reacts to view changes decided by the session gate. A forced
// switch back to the sign-in view means the session ended underneath us.
func (a *App) onNavigate(v session.View) {
	if v == session.ViewSignIn {
		a.stopWatching()
		printlnFn("Session ended, please log in again.")
	}
}

func (a *App) isLoggedIn() bool {
	return a.keys.HasKey() && a.auth.CurrentUser() != nil
}

func (a *App) currentUserID() (string, error) {
	u := a.auth.CurrentUser()
	if u == nil {
		return "", remote.ErrUnauthenticated
	}
	return u.ID, nil
}

// startSession loads the content cache and starts mirroring remote changes
// into it. Called after every successful sign-in or sign-up.
func (a *App) startSession(ctx context.Context) error {
	userID, err := a.currentUserID()
	if err != nil {
		return err
	}
	if err := a.notes.Refresh(ctx, userID); err != nil {
		return err
	}
	stop, err := a.notes.WatchContent(ctx, userID)
	if err != nil {
		return err
	}
	a.stopWatch = stop
	return nil
}

func (a *App) stopWatching() {
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}
}

func (a *App) getStatus() string {
	u := a.auth.CurrentUser()
	if u == nil {
		return ""
	}
	return "(" + u.Email + ")"
}
