// Package filestore keeps the session record in a JSON file readable only by its owner.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-auth-session/tokenstore"
)

var _ tokenstore.Store = (*FileStore)(nil)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

type FileStore struct {
	path string
	lock sync.Mutex
}

func New(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("filestore: path is empty")
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Save writes to a temporary file and renames it over the target so readers never see a partial record
func (s *FileStore) Save(_ context.Context, record tokenstore.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("filestore.Save marshal: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("filestore.Save create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("filestore.Save create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore.Save chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore.Save write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore.Save close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore.Save rename: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (tokenstore.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokenstore.Record{}, tokenstore.ErrNotFound
	}
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("filestore.Load read: %w", err)
	}

	var record tokenstore.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return tokenstore.Record{}, fmt.Errorf("filestore.Load decode %s: %w: %v", s.path, tokenstore.ErrCorrupt, err)
	}
	if err := record.Validate(); err != nil {
		return tokenstore.Record{}, fmt.Errorf("filestore.Load %s: %w: %v", s.path, tokenstore.ErrCorrupt, err)
	}
	return record, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore.Clear: %w", err)
	}
	return nil
}
