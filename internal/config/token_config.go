package config

import (
	"strings"
	"time"
)

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetAccessTokenExpiry() time.Duration {
	return GetDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

// GetRetiredSigningSecrets lists previous secrets (comma separated) whose tokens still verify.
func (Token) GetRetiredSigningSecrets() []string {
	var secrets []string
	for _, secret := range strings.Split(GetEnv("RETIRED_SIGNING_SECRETS", ""), ",") {
		if secret = strings.TrimSpace(secret); secret != "" {
			secrets = append(secrets, secret)
		}
	}
	return secrets
}

// GetSigningSecret returns the HMAC secret for access tokens. The default is only fit for development.
func (Token) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-signing-secret-change-me")
}

const (
	RevocationStoreMemory = "memory"
	RevocationStoreRedis  = "redis"
)

// GetRevocationStore selects where revoked token IDs are kept. "redis" shares them
// between server instances using REDIS_ADDR and REDIS_PREFIX.
func (Token) GetRevocationStore() string {
	return strings.ToLower(GetEnv("REVOCATION_STORE", RevocationStoreMemory))
}
