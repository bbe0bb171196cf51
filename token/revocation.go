package token

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RevokedTokenCache remembers revoked token IDs until the tokens would have expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) (bool, error)
	Cleanup(now time.Time)
}

// InMemoryRevokedTokenCache keeps revocations for a single server process
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists, nil
}

func (c *InMemoryRevokedTokenCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

// RedisRevokedTokenCache shares revocations between server instances. Each
// entry expires in Redis together with the token it revokes.
type RedisRevokedTokenCache struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
	nowFunc func() time.Time
}

func NewRedisRevokedTokenCache(rdb redis.UniversalClient, prefix string, nowFunc func() time.Time) *RedisRevokedTokenCache {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &RedisRevokedTokenCache{
		rdb:     rdb,
		prefix:  prefix + ":revoked:",
		timeout: 2 * time.Second,
		nowFunc: nowFunc,
	}
}

func (c *RedisRevokedTokenCache) Add(jti string, exp time.Time) error {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil // already expired, nothing to remember
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.rdb.Set(ctx, c.prefix+jti, exp.Unix(), ttl).Err(); err != nil {
		return errors.Wrap(err, "RedisRevokedTokenCache.Add")
	}
	return nil
}

func (c *RedisRevokedTokenCache) IsRevoked(jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	n, err := c.rdb.Exists(ctx, c.prefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "RedisRevokedTokenCache.IsRevoked")
	}
	return n > 0, nil
}

// Cleanup is a no-op, Redis expires the keys itself.
func (c *RedisRevokedTokenCache) Cleanup(time.Time) {}
