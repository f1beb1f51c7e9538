package httpstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/cryptox"
	"github.com/dbrusnev/notelock/internal/remote"
)

// deriveVerifier turns the password into the login credential the server
// stores: SHA-256 of a PBKDF2-derived key over the account's login salt.
// The password itself never goes over the wire.
func deriveVerifier(password string, salt []byte) []byte {
	credential := cryptox.DerivePasswordKey([]byte(password), salt)
	defer common.WipeByteArray(credential)
	sum := sha256.Sum256(credential)
	return sum[:]
}

type userPayload struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (p userPayload) toUser() *remote.User {
	return &remote.User{
		ID:            p.ID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		CreatedAt:     p.CreatedAt,
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*remote.User, error) {
	salt := common.GenerateRandByteArray(16)
	verifier := deriveVerifier(password, salt)

	err := c.doPublic(ctx, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":    email,
		"salt":     base64.StdEncoding.EncodeToString(salt),
		"verifier": base64.StdEncoding.EncodeToString(verifier),
	}, nil)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusConflict {
			return nil, common.ErrAlreadyExists
		}
		return nil, mapError(err)
	}

	return c.SignIn(ctx, email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*remote.User, error) {
	salt, err := c.fetchSalt(ctx, email)
	if err != nil {
		return nil, err
	}
	verifier := deriveVerifier(password, salt)

	var out struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		User         userPayload `json:"user"`
	}
	err = c.doPublic(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"verifier": base64.StdEncoding.EncodeToString(verifier),
	}, &out)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
			return nil, common.ErrInvalidCredentials
		}
		return nil, mapError(err)
	}

	user := out.User.toUser()

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.refreshToken = out.RefreshToken
	c.user = user
	listeners := c.snapshotListenersLocked()
	persist := c.persist
	c.mu.Unlock()

	c.notify(listeners, user)
	c.persistToken(persist, out.RefreshToken)
	return copyUser(user), nil
}

// ResumeSession re-establishes a session from a refresh token persisted by a
// previous run, without a password. The token is rotated immediately; when it
// has already been spent or expired, ErrUnauthenticated is returned and the
// persisted token is cleared.
func (c *Client) ResumeSession(ctx context.Context, refreshToken string) (*remote.User, error) {
	c.mu.Lock()
	c.refreshToken = refreshToken
	c.mu.Unlock()

	if err := c.refreshSession(ctx); err != nil {
		return nil, err
	}

	var out userPayload
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, &out); err != nil {
		c.clearSession()
		return nil, mapError(err)
	}

	user := out.toUser()
	c.mu.Lock()
	c.user = user
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	c.notify(listeners, user)
	return copyUser(user), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()

	if refresh != "" {
		err := c.doPublic(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{"refreshToken": refresh}, nil)
		if err != nil {
			c.log.Warn(ctx, "logout request failed", "err", err)
		}
	}

	c.clearSession()
	return nil
}

func (c *Client) CurrentUser() *remote.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUser(c.user)
}

func (c *Client) OnUserChanged(fn func(*remote.User)) *remote.AuthSubscription {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	current := copyUser(c.user)
	c.mu.Unlock()

	c.enqueue(func() { fn(current) })

	return remote.NewAuthSubscription(func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	})
}

func (c *Client) SendVerificationEmail(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/v1/auth/verify-email", struct{}{}, nil); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) UpdateEmail(ctx context.Context, newEmail string) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/email", map[string]string{"newEmail": newEmail}, nil)
	if err != nil {
		return mapError(err)
	}

	c.mu.Lock()
	if c.user != nil {
		c.user.Email = newEmail
		c.user.EmailVerified = false
	}
	c.mu.Unlock()
	return nil
}

// UpdatePassword replaces the login credential with a fresh salt and
// verifier. It does not touch the content key wrapping; that is the key
// manager's job.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	salt := common.GenerateRandByteArray(16)
	verifier := deriveVerifier(newPassword, salt)

	err := c.do(ctx, http.MethodPost, "/v1/auth/password", map[string]string{
		"newSalt":     base64.StdEncoding.EncodeToString(salt),
		"newVerifier": base64.StdEncoding.EncodeToString(verifier),
	}, nil)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) Reauthenticate(ctx context.Context, password string) error {
	c.mu.Lock()
	user := copyUser(c.user)
	c.mu.Unlock()
	if user == nil {
		return remote.ErrUnauthenticated
	}

	salt, err := c.fetchSalt(ctx, user.Email)
	if err != nil {
		return err
	}
	verifier := deriveVerifier(password, salt)

	err = c.do(ctx, http.MethodPost, "/v1/auth/reauth", map[string]string{
		"verifier": base64.StdEncoding.EncodeToString(verifier),
	}, nil)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
			return common.ErrInvalidCredentials
		}
		return mapError(err)
	}
	return nil
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/auth/account", nil, nil); err != nil {
		return mapError(err)
	}
	c.clearSession()
	return nil
}

func (c *Client) fetchSalt(ctx context.Context, email string) ([]byte, error) {
	var out struct {
		Salt string `json:"salt"`
	}
	err := c.doPublic(ctx, http.MethodGet, "/v1/auth/salt?email="+url.QueryEscape(email), nil, &out)
	if err != nil {
		return nil, mapError(err)
	}

	salt, err := base64.StdEncoding.DecodeString(out.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed salt", common.ErrInvalidData)
	}
	return salt, nil
}
