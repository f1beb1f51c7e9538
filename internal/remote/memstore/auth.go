package memstore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/remote"
)

type account struct {
	user         remote.User
	passwordHash [32]byte
}

// Auth is an in-memory remote.Auth. Listener callbacks run on a dedicated
// goroutine, giving the same single-delivery-thread behavior the contract
// promises.
type Auth struct {
	mu        sync.Mutex
	accounts  map[string]*account // keyed by email
	current   *remote.User
	listeners map[int]func(*remote.User)
	nextID    int
	events    chan func()
	closeOnce sync.Once
	closed    chan struct{}
}

func NewAuth() *Auth {
	a := &Auth{
		accounts:  make(map[string]*account),
		listeners: make(map[int]func(*remote.User)),
		events:    make(chan func(), 64),
		closed:    make(chan struct{}),
	}
	go a.deliver()
	return a
}

// Close stops the delivery goroutine.
func (a *Auth) Close() {
	a.closeOnce.Do(func() { close(a.closed) })
}

func (a *Auth) deliver() {
	for {
		select {
		case <-a.closed:
			return
		case fn := <-a.events:
			fn()
		}
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*remote.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.accounts[email]; ok {
		return nil, common.ErrAlreadyExists
	}

	acc := &account{
		user: remote.User{
			ID:        uuid.NewString(),
			Email:     email,
			CreatedAt: time.Now().UTC(),
		},
		passwordHash: sha256.Sum256([]byte(password)),
	}
	a.accounts[email] = acc

	u := acc.user
	a.current = &u
	a.notifyLocked()
	return &u, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*remote.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.accounts[email]
	if !ok || !acc.checkPassword(password) {
		return nil, common.ErrInvalidCredentials
	}

	u := acc.user
	a.current = &u
	a.notifyLocked()
	return &u, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = nil
	a.notifyLocked()
	return nil
}

func (a *Auth) CurrentUser() *remote.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

func (a *Auth) OnUserChanged(fn func(*remote.User)) *remote.AuthSubscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn

	// immediate delivery of the current state
	cur := a.current
	a.enqueue(func() { fn(copyUser(cur)) })

	return remote.NewAuthSubscription(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	})
}

func (a *Auth) SendVerificationEmail(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.currentAccountLocked()
	if acc == nil {
		return remote.ErrUnauthenticated
	}
	// no outbox in memory: verification is immediate
	acc.user.EmailVerified = true
	return nil
}

func (a *Auth) UpdateEmail(ctx context.Context, newEmail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.currentAccountLocked()
	if acc == nil {
		return remote.ErrUnauthenticated
	}
	if _, taken := a.accounts[newEmail]; taken {
		return common.ErrAlreadyExists
	}
	delete(a.accounts, acc.user.Email)
	acc.user.Email = newEmail
	acc.user.EmailVerified = false
	a.accounts[newEmail] = acc
	u := acc.user
	a.current = &u
	return nil
}

func (a *Auth) UpdatePassword(ctx context.Context, newPassword string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.currentAccountLocked()
	if acc == nil {
		return remote.ErrUnauthenticated
	}
	acc.passwordHash = sha256.Sum256([]byte(newPassword))
	return nil
}

func (a *Auth) Reauthenticate(ctx context.Context, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.currentAccountLocked()
	if acc == nil {
		return remote.ErrUnauthenticated
	}
	if !acc.checkPassword(password) {
		return common.ErrInvalidCredentials
	}
	return nil
}

func (a *Auth) DeleteAccount(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.currentAccountLocked()
	if acc == nil {
		return remote.ErrUnauthenticated
	}
	delete(a.accounts, acc.user.Email)
	a.current = nil
	a.notifyLocked()
	return nil
}

func (a *Auth) currentAccountLocked() *account {
	if a.current == nil {
		return nil
	}
	return a.accounts[a.current.Email]
}

func (a *Auth) notifyLocked() {
	cur := a.current
	for _, fn := range a.listeners {
		fn := fn
		a.enqueue(func() { fn(copyUser(cur)) })
	}
}

func (a *Auth) enqueue(fn func()) {
	select {
	case a.events <- fn:
	case <-a.closed:
	}
}

func (acc *account) checkPassword(password string) bool {
	h := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(h[:], acc.passwordHash[:]) == 1
}

func copyUser(u *remote.User) *remote.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
