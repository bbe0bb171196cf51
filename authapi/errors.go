package authapi

import "errors"

// Errors a client can classify a failed call by, using errors.Is.
var (
	ErrBadRequest         = errors.New("request rejected")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrUnexpectedStatus   = errors.New("unexpected status")
)
