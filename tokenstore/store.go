// Package tokenstore persists the current session token between process runs.
package tokenstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when nothing is stored.
var ErrNotFound = errors.New("tokenstore: no stored session")

// ErrCorrupt is returned by Load when the stored record cannot be decoded or is incomplete.
var ErrCorrupt = errors.New("tokenstore: stored session is corrupt")

// Record is a persisted session.
type Record struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Remaining returns how long the record stays valid after now. It is negative once expired.
func (r Record) Remaining(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("tokenstore: token is empty")
	}
	if r.ExpiresAt.IsZero() {
		return errors.New("tokenstore: expiry is unset")
	}
	return nil
}

// Store keeps at most one Record.
type Store interface {
	// Save replaces any stored record
	Save(ctx context.Context, record Record) error

	// Load returns ErrNotFound when nothing is stored
	Load(ctx context.Context) (Record, error)

	// Clear removes the stored record. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
