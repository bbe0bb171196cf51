// Package redisstore keeps the session record in Redis. The key expires together
// with the session, so an expired session is never loaded.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/redis/go-redis/v9"
)

var _ tokenstore.Store = (*RedisStore)(nil)

// ErrExpired is returned by Save for records whose expiry has already passed.
var ErrExpired = errors.New("redisstore: record already expired")

type RedisStore struct {
	rdb     redis.UniversalClient
	key     string
	nowFunc func() time.Time
}

type Option func(*RedisStore)

func WithNowFunc(now func() time.Time) Option {
	return func(s *RedisStore) {
		s.nowFunc = now
	}
}

func New(rdb redis.UniversalClient, prefix string, options ...Option) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redisstore: redis client is required")
	}
	if prefix == "" {
		prefix = "authsession"
	}
	s := &RedisStore{
		rdb:     rdb,
		key:     prefix + ":session",
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Save(ctx context.Context, record tokenstore.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	ttl := record.Remaining(s.nowFunc())
	if ttl <= 0 {
		return ErrExpired
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redisstore.Save marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore.Save: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (tokenstore.Record, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return tokenstore.Record{}, tokenstore.ErrNotFound
	}
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("redisstore.Load: %w", err)
	}

	var record tokenstore.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return tokenstore.Record{}, fmt.Errorf("redisstore.Load decode: %w: %v", tokenstore.ErrCorrupt, err)
	}
	if err := record.Validate(); err != nil {
		return tokenstore.Record{}, fmt.Errorf("redisstore.Load: %w: %v", tokenstore.ErrCorrupt, err)
	}
	return record, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redisstore.Clear: %w", err)
	}
	return nil
}
