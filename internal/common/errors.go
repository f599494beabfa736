// Package common defines sentinel errors shared across the server layers.
// Callers should match these values with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal          = errors.New("internal error")
	ErrorUnavailable       = errors.New("upstream unavailable")
	ErrorUnauthorized      = errors.New("unauthorized")
	ErrorEmailNotConfirmed = errors.New("email not confirmed")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
