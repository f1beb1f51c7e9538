// Package common defines shared constants and sentinel errors used across
// the NoteLock client and the reference server. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository/remote-store errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials covers both a wrong password and a corrupted
	// wrapped-key record; the two are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidData marks a record that failed decryption or shape
	// validation after a successful fetch.
	ErrInvalidData = errors.New("invalid data")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
