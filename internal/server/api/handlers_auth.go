package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/models"
)

type userPayload struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserPayload(u *models.User) userPayload {
	return userPayload{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	salt, verifier, ok := decodeCredentials(w, req.Salt, req.Verifier)
	if !ok {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, salt, verifier)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.log.Error(r.Context(), "register failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toUserPayload(user))
}

func (s *Server) handleGetSalt(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	salt, err := s.users.GetSalt(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"salt": base64.StdEncoding.EncodeToString(salt),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Verifier string `json:"verifier"`
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *userPayload `json:"user,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verifier, err := base64.StdEncoding.DecodeString(req.Verifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid verifier encoding")
		return
	}

	user, pair, err := s.users.Login(r.Context(), req.Email, verifier)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	up := toUserPayload(user)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &up,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := s.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRefreshTokenExpired):
			writeError(w, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, common.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.users.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(user))
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.users.VerifyEmail(r.Context(), userID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateEmailRequest struct {
	NewEmail string `json:"newEmail"`
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewEmail == "" {
		writeError(w, http.StatusBadRequest, "newEmail is required")
		return
	}

	if err := s.users.UpdateEmail(r.Context(), userID(r), req.NewEmail); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePasswordRequest struct {
	NewSalt     string `json:"newSalt"`
	NewVerifier string `json:"newVerifier"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	salt, verifier, ok := decodeCredentials(w, req.NewSalt, req.NewVerifier)
	if !ok {
		return
	}

	if err := s.users.UpdatePassword(r.Context(), userID(r), salt, verifier); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reauthRequest struct {
	Verifier string `json:"verifier"`
}

func (s *Server) handleReauthenticate(w http.ResponseWriter, r *http.Request) {
	var req reauthRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verifier, err := base64.StdEncoding.DecodeString(req.Verifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid verifier encoding")
		return
	}

	if err := s.users.Reauthenticate(r.Context(), userID(r), verifier); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.users.DeleteAccount(r.Context(), userID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCredentials(w http.ResponseWriter, saltB64, verifierB64 string) (salt, verifier []byte, ok bool) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) == 0 {
		writeError(w, http.StatusBadRequest, "invalid salt encoding")
		return nil, nil, false
	}
	verifier, err = base64.StdEncoding.DecodeString(verifierB64)
	if err != nil || len(verifier) == 0 {
		writeError(w, http.StatusBadRequest, "invalid verifier encoding")
		return nil, nil, false
	}
	return salt, verifier, true
}
