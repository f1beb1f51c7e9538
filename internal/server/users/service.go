// Package users implements account management on top of the user and
// refresh-token repositories. Passwords never reach the server: the client
// sends a verifier derived from the password and a per-account salt, and
// login is a constant-time comparison against the stored verifier.
package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dbrusnev/notelock/internal/common"
	"github.com/dbrusnev/notelock/internal/server/auth"
	"github.com/dbrusnev/notelock/internal/server/config"
	"github.com/dbrusnev/notelock/internal/server/models"
	"github.com/dbrusnev/notelock/internal/server/repositories/refreshtokens"
	"github.com/dbrusnev/notelock/internal/server/repositories/users"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service struct {
	repo                         users.Repository
	refreshTokenRepo             refreshtokens.Repository
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewService(repo users.Repository, refreshTokenRepo refreshtokens.Repository, cfg *config.Config) *Service {
	return &Service{
		repo:                         repo,
		refreshTokenRepo:             refreshTokenRepo,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

func (s *Service) Register(ctx context.Context, email string, salt, verifier []byte) (*models.User, error) {
	user := &models.User{
		Email:    email,
		Salt:     salt,
		Verifier: verifier,
	}

	user, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// GetSalt returns the login salt for the account. Unknown accounts get a
// random salt so the response does not reveal whether the email exists.
func (s *Service) GetSalt(ctx context.Context, email string) ([]byte, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.GenerateRandByteArray(16), nil
		}
		return nil, common.ErrInternal
	}

	return user.Salt, nil
}

func (s *Service) Login(ctx context.Context, email string, verifierCandidate []byte) (*models.User, *TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrUnauthorized
		}
		return nil, nil, common.ErrInternal
	}

	if !s.checkVerifier(user.Verifier, verifierCandidate) {
		return nil, nil, common.ErrUnauthorized
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the refresh token and issues a new access token. Expired
// tokens are removed and reported as such.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rt, err := s.refreshTokenRepo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.ErrInternal
	}

	if time.Now().After(rt.ExpiresAt) {
		_ = s.refreshTokenRepo.Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	accessToken, err := auth.GenerateToken(rt.UserID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}
	newRefreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrInternal
	}

	if err := s.refreshTokenRepo.Rotate(ctx, refreshToken, rt.UserID, newRefreshToken, s.refreshTokenValidityDuration); err != nil {
		// a concurrent refresh won the race and spent the token
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.ErrInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil {
		return common.ErrInternal
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrInternal
	}
	return user, nil
}

// Reauthenticate re-checks the verifier of an already authenticated user,
// gating sensitive operations such as account deletion.
func (s *Service) Reauthenticate(ctx context.Context, userID string, verifierCandidate []byte) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return common.ErrUnauthorized
	}
	if !s.checkVerifier(user.Verifier, verifierCandidate) {
		return common.ErrUnauthorized
	}
	return nil
}

func (s *Service) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	return s.repo.UpdateEmail(ctx, userID, newEmail)
}

// UpdatePassword replaces the login credential. Both the salt and the
// verifier change together; existing refresh tokens are revoked.
func (s *Service) UpdatePassword(ctx context.Context, userID string, newSalt, newVerifier []byte) error {
	if err := s.repo.UpdateVerifier(ctx, userID, newSalt, newVerifier); err != nil {
		return err
	}
	return s.refreshTokenRepo.DeleteForUser(ctx, userID)
}

// VerifyEmail marks the account's email as confirmed. The reference server
// has no mailer; the confirmation round-trip is the deployment's concern.
func (s *Service) VerifyEmail(ctx context.Context, userID string) error {
	return s.repo.MarkEmailVerified(ctx, userID)
}

// DeleteAccount removes the user; documents and refresh tokens go with it
// through foreign keys.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return s.repo.Delete(ctx, userID)
}

func (s *Service) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrInternal
	}

	if err := s.refreshTokenRepo.Create(ctx, userID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) checkVerifier(verifier, verifierCandidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, verifierCandidate) == 1
}
