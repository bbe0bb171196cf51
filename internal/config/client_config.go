package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetTokenStore() string {
	return strings.ToLower(GetEnv("TOKEN_STORE", TokenStoreFile))
}

// GetTokenFile defaults to a file in the user's config directory
func (Client) GetTokenFile() string {
	if file := GetEnv("TOKEN_FILE", ""); file != "" {
		return file
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "go-auth-session", "session.json")
}

func (Client) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Client) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "authsession")
}

func (Client) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 15*time.Second)
}

// GetMinStoredLifetime is the remaining lifetime under which a persisted session is discarded
func (Client) GetMinStoredLifetime() time.Duration {
	return GetDuration("MIN_STORED_LIFETIME", time.Second)
}
