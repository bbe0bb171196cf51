package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	ClientConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// TokenConfig holds the identity service token settings.
type TokenConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetSigningSecret() string
	GetRetiredSigningSecrets() []string
	GetRevocationStore() string
}

// ClientConfig holds the settings used by the session client and CLI.
type ClientConfig interface {
	GetTokenStore() string
	GetTokenFile() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRequestTimeout() time.Duration
	GetMinStoredLifetime() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Client
}

func New() Config {
	return mainConfig{}
}
