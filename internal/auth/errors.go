package auth

import "errors"

var (
	ErrNotFound       = errors.New("auth: not found")
	ErrConflict       = errors.New("auth: already exists")
	ErrInvalidInput   = errors.New("auth: invalid input")
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrRoleLookup     = errors.New("auth: role lookup failed")
	ErrNotImplemented = errors.New("auth: not implemented")

	// ErrInvalidCredentials carries the message clients match on to show credential errors.
	ErrInvalidCredentials = errors.New("Invalid login credentials")
)
