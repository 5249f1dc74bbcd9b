package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors.
	ErrorInvalidConfig = errors.New("invalid configuration")
	ErrorInvalidInput  = errors.New("invalid input")

	// Auth errors (missing, invalid or expired bearer token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoToken      = errors.New("no token configured")
)
