// Package api exposes the HTTP surface of the NoteLock server: account
// endpoints, the schemaless document CRUD the clients store ciphertext in,
// and an SSE watch stream per collection.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dbrusnev/notelock/internal/logging"
	"github.com/dbrusnev/notelock/internal/server/docs"
	"github.com/dbrusnev/notelock/internal/server/users"
	"github.com/dbrusnev/notelock/internal/server/watch"
)

type Server struct {
	addr      string
	secretKey []byte
	users     *users.Service
	docs      *docs.Service
	hub       *watch.Hub
	log       logging.Logger
}

func NewServer(addr string, secretKey []byte, us *users.Service, ds *docs.Service, hub *watch.Hub, log logging.Logger) *Server {
	return &Server{
		addr:      addr,
		secretKey: secretKey,
		users:     us,
		docs:      ds,
		hub:       hub,
		log:       log.With("module", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("GET /v1/auth/salt", s.handleGetSalt)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)

	mux.HandleFunc("GET /v1/auth/me", s.withAuth(s.handleMe))
	mux.HandleFunc("POST /v1/auth/verify-email", s.withAuth(s.handleVerifyEmail))
	mux.HandleFunc("POST /v1/auth/email", s.withAuth(s.handleUpdateEmail))
	mux.HandleFunc("POST /v1/auth/password", s.withAuth(s.handleUpdatePassword))
	mux.HandleFunc("POST /v1/auth/reauth", s.withAuth(s.handleReauthenticate))
	mux.HandleFunc("DELETE /v1/auth/account", s.withAuth(s.handleDeleteAccount))

	mux.HandleFunc("GET /v1/docs/{collection}", s.withAuth(s.handleQueryDocs))
	mux.HandleFunc("POST /v1/docs/{collection}", s.withAuth(s.handleAddDoc))
	mux.HandleFunc("GET /v1/docs/{collection}/watch", s.withAuth(s.handleWatch))
	mux.HandleFunc("GET /v1/docs/{collection}/{id}", s.withAuth(s.handleGetDoc))
	mux.HandleFunc("PUT /v1/docs/{collection}/{id}", s.withAuth(s.handleSetDoc))
	mux.HandleFunc("DELETE /v1/docs/{collection}/{id}", s.withAuth(s.handleDeleteDoc))

	mux.HandleFunc("POST /v1/export/pdf", s.withAuth(s.handleExportPDF))

	return s.withLogging(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info(ctx, "http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleExportPDF is a placeholder; HTML-to-PDF rendering is an external
// service and is not bundled with the reference server.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "pdf rendering is not bundled with this server")
}
