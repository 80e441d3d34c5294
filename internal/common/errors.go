// Package common defines shared constants and sentinel errors used across
// the supervisor's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Input errors. Messages are wrapped around ErrValidation, e.g.
	// fmt.Errorf("%w: username must be at least 3 characters", ErrValidation).
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("not authenticated")

	// Session token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
