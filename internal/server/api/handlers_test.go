package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/server/config"
	"github.com/dbrusnev/notelock/internal/server/docs"
	"github.com/dbrusnev/notelock/internal/server/repositories/repomanager"
	"github.com/dbrusnev/notelock/internal/server/users"
	"github.com/dbrusnev/notelock/internal/server/watch"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Minute,
		RefreshTokenValidityDuration: time.Hour,
	}

	hub := watch.NewHub()
	rm := repomanager.NewInMemoryRepositoryManager()
	us := users.NewService(rm.Users(), rm.RefreshTokens(), cfg)
	ds := docs.NewService(rm.Documents(), hub)

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	srv := NewServer(":0", []byte(cfg.SecretKey), us, ds, hub, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// registerAndLogin creates an account and returns its access token.
func registerAndLogin(t *testing.T, ts *httptest.Server) (token, userID string) {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"salt":     b64("0123456789abcdef"),
		"verifier": b64("verifier-bytes"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"verifier": b64("verifier-bytes"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user := body["user"].(map[string]any)
	return body["accessToken"].(string), user["id"].(string)
}

func TestRegisterLogin_Flow(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)
	assert.NotEmpty(t, token)

	// wrong verifier is rejected without detail
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"verifier": b64("wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["error"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := testServer(t)
	registerAndLogin(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"salt":     b64("0123456789abcdef"),
		"verifier": b64("other"),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetSalt_UnknownEmailStillAnswers(t *testing.T) {
	ts := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/auth/salt?email=nobody@example.com", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	salt, err := base64.StdEncoding.DecodeString(body["salt"].(string))
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}

func TestRefresh_RotatesToken(t *testing.T) {
	ts := testServer(t)
	registerAndLogin(t, ts)

	_, body := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"verifier": b64("verifier-bytes"),
	})
	refresh := body["refreshToken"].(string)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEqual(t, refresh, body["refreshToken"])

	// the old token is spent
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocs_RequireAuth(t *testing.T) {
	ts := testServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocs_CRUD(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/docs/notes", token, map[string]any{
		"title":     "ciphertext",
		"createdAt": map[string]any{"__serverTimestamp__": true},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, doc := doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ciphertext", doc["title"])
	_, err := time.Parse(time.RFC3339, doc["createdAt"].(string))
	assert.NoError(t, err)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/v1/docs/notes/"+id+"?merge=true", token, map[string]any{"title": "edited"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, list := doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	documents := list["documents"].([]any)
	require.Len(t, documents, 1)
	assert.Equal(t, "edited", documents[0].(map[string]any)["title"])

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/docs/notes/"+id, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocs_CrossUserAccessForbidden(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/docs/notes", token, map[string]any{"title": "x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	// second account
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", map[string]string{
		"email": "bob@example.com", "salt": b64("fedcba9876543210"), "verifier": b64("bob-verifier"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, login := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email": "bob@example.com", "verifier": b64("bob-verifier"),
	})
	bobToken := login["accessToken"].(string)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/docs/notes/"+id, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAccountLifecycle(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/reauth", token, map[string]string{"verifier": b64("verifier-bytes")})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/reauth", token, map[string]string{"verifier": b64("wrong")})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/verify-email", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, me := doJSON(t, http.MethodGet, ts.URL+"/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, me["emailVerified"])

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/auth/account", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportPDF_NotImplemented(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/export/pdf", token, map[string]string{"html": "<p>x</p>"})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestWatch_StreamsSnapshots(t *testing.T) {
	ts := testServer(t)
	token, _ := registerAndLogin(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/docs/notes/watch", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan []any, 4)
	go func() {
		dec := newSSEDecoder(resp.Body)
		for {
			var docs []any
			if err := dec.next(&docs); err != nil {
				close(events)
				return
			}
			events <- docs
		}
	}()

	// initial snapshot is empty
	first := <-events
	assert.Empty(t, first)

	resp2, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/docs/notes", token, map[string]any{"title": "x"})
	require.Equal(t, http.StatusCreated, resp2.StatusCode)

	select {
	case docs := <-events:
		require.Len(t, docs, 1)
		assert.Equal(t, "x", docs[0].(map[string]any)["title"])
	case <-ctx.Done():
		t.Fatal("no snapshot after change")
	}
}

// sseDecoder reads "data: ..." frames from an SSE stream.
type sseDecoder struct {
	r *bufio.Reader
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{r: bufio.NewReader(r)}
}

func (d *sseDecoder) next(v any) error {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			return err
		}
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			return json.Unmarshal([]byte(rest), v)
		}
	}
}
