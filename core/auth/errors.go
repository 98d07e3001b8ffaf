package auth

import "errors"

var (
	// ErrInvalidToken is returned when a bearer token fails signature or
	// claim validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a bearer token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")

	// ErrTokenSigningFailed is returned when token generation fails.
	ErrTokenSigningFailed = errors.New("failed to sign token")

	// ErrMissingSecret is returned when a token service is constructed
	// without a signing secret.
	ErrMissingSecret = errors.New("signing secret is required")

	// ErrInvalidCredentials is returned on login with an unknown principal
	// or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPrincipalNotFound is returned by registries when no principal is
	// stored under the requested identifier.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrPrincipalExists is returned by atomic registry inserts when the
	// identifier is already taken.
	ErrPrincipalExists = errors.New("principal already exists")
)
