// Package httpstore implements the remote.Store and remote.Auth contracts
// against the NoteLock HTTP backend. One Client carries both: the document
// calls reuse the session established by the auth calls, refreshing the
// access token transparently when it expires.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/remote"
)

type Client struct {
	baseURL string
	hc      *http.Client
	// stream has no timeout; watch connections stay open indefinitely
	stream *http.Client
	log    logging.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	user         *remote.User
	persist      func(refreshToken string)

	listeners  map[int]func(*remote.User)
	nextListen int
	events     chan func()
	closeOnce  sync.Once
	done       chan struct{}
}

func NewClient(baseURL string, timeout time.Duration, log logging.Logger) *Client {
	c := &Client{
		baseURL:   baseURL,
		hc:        &http.Client{Timeout: timeout},
		stream:    &http.Client{},
		log:       log.With("module", "httpstore"),
		listeners: make(map[int]func(*remote.User)),
		events:    make(chan func(), 16),
		done:      make(chan struct{}),
	}
	go c.deliver()
	return c
}

// PersistSession registers fn to be called with the current refresh token
// whenever it changes. Sign-in and every rotation pass the new token; sign-out
// passes an empty string. The caller stores the token to resume the session in
// a later run (see ResumeSession). Call before any auth operation.
func (c *Client) PersistSession(fn func(refreshToken string)) {
	c.mu.Lock()
	c.persist = fn
	c.mu.Unlock()
}

// persistToken hands the token to the registered persistence hook on the
// delivery goroutine. fn is the hook snapshotted under c.mu.
func (c *Client) persistToken(fn func(string), token string) {
	if fn == nil {
		return
	}
	c.enqueue(func() { fn(token) })
}

// Close stops listener delivery. Pending notifications are dropped.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) deliver() {
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *Client) enqueue(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// apiError carries the HTTP status and the server's error message.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server: %s (HTTP %d)", e.Message, e.Status)
}

// mapError translates transport failures and HTTP statuses into the remote
// error taxonomy.
func mapError(err error) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	switch ae.Status {
	case http.StatusNotFound:
		return remote.ErrNotFound
	case http.StatusUnauthorized:
		return remote.ErrUnauthenticated
	case http.StatusForbidden:
		return remote.ErrPermissionDenied
	default:
		if ae.Status >= 500 {
			return fmt.Errorf("%w: %v", remote.ErrUnavailable, ae)
		}
		return ae
	}
}

// do performs an authenticated JSON request, refreshing the access token and
// retrying once on an expired-token response.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	err := c.doOnce(ctx, method, path, body, out, true)
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized && ae.Message == "token expired" {
		if rerr := c.refreshSession(ctx); rerr != nil {
			return rerr
		}
		err = c.doOnce(ctx, method, path, body, out, true)
	}
	return err
}

// doPublic performs an unauthenticated JSON request.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out any) error {
	return c.doOnce(ctx, method, path, body, out, false)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, withToken bool) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withToken {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &apiError{Status: resp.StatusCode, Message: er.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) refreshSession(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return remote.ErrUnauthenticated
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	err := c.doPublic(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{"refreshToken": refresh}, &out)
	if err != nil {
		// session is gone; drop it and tell the listeners
		c.clearSession()
		return remote.ErrUnauthenticated
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.refreshToken = out.RefreshToken
	persist := c.persist
	c.mu.Unlock()

	c.persistToken(persist, out.RefreshToken)
	return nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	hadUser := c.user != nil
	hadToken := c.refreshToken != ""
	c.accessToken = ""
	c.refreshToken = ""
	c.user = nil
	listeners := c.snapshotListenersLocked()
	persist := c.persist
	c.mu.Unlock()

	if hadUser {
		c.notify(listeners, nil)
	}
	if hadToken {
		c.persistToken(persist, "")
	}
}

func (c *Client) snapshotListenersLocked() []func(*remote.User) {
	out := make([]func(*remote.User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Client) notify(listeners []func(*remote.User), u *remote.User) {
	for _, fn := range listeners {
		fn := fn
		c.enqueue(func() { fn(copyUser(u)) })
	}
}

func copyUser(u *remote.User) *remote.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
