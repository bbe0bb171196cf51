package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-session/tokenstore"
)

var _ tokenstore.Store = (*MemStore)(nil)

type MemStore struct {
	record *tokenstore.Record
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Save(_ context.Context, record tokenstore.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.record = &record
	return nil
}

func (s *MemStore) Load(_ context.Context) (tokenstore.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.record == nil {
		return tokenstore.Record{}, tokenstore.ErrNotFound
	}
	return *s.record, nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.record = nil
	return nil
}
