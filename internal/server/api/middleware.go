package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// withAuth validates the Bearer access token and stores the user id in the
// request context. Expired tokens get a distinct message so clients know to
// refresh rather than re-login.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		id, err := auth.GetUserIDFromToken(token, s.secretKey)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
