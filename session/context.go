package session

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by FromContext when no Manager was attached.
var ErrNoProvider = errors.New("session: no manager in context")

type managerKey struct{}

// NewContext returns a copy of ctx carrying m.
func NewContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

func FromContext(ctx context.Context) (*Manager, error) {
	m, ok := ctx.Value(managerKey{}).(*Manager)
	if !ok || m == nil {
		return nil, ErrNoProvider
	}
	return m, nil
}

// MustFromContext is FromContext for callers that cannot run without a session.
func MustFromContext(ctx context.Context) *Manager {
	m, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return m
}
