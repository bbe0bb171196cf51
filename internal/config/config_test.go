package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEnvVars_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BASE_URL", "")
	t.Setenv("ENV", "")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "")
	t.Setenv("MIN_STORED_LIFETIME", "")
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("REVOCATION_STORE", "")
	require.NoError(t, config.LoadFile(""))

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "http://localhost:8080", c.GetBaseURL())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, time.Hour, c.GetAccessTokenExpiry())
	require.Equal(t, time.Second, c.GetMinStoredLifetime())
	require.Equal(t, config.TokenStoreFile, c.GetTokenStore())
	require.Equal(t, config.RevocationStoreMemory, c.GetRevocationStore())
}

func TestEnvVars_PortPrefix(t *testing.T) {
	c := config.New()

	t.Setenv("PORT", "9090")
	require.Equal(t, ":9090", c.GetPort())

	t.Setenv("PORT", ":9091")
	require.Equal(t, ":9091", c.GetPort())
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("base_url: http://auth.internal:9000\naccess_token_expiry: 15m\nrequest_timeout: 3\n"), 0o600)
	require.NoError(t, err)

	require.NoError(t, config.LoadFile(path))
	t.Cleanup(func() { _ = config.LoadFile("") })

	c := config.New()
	t.Setenv("BASE_URL", "")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	require.Equal(t, "http://auth.internal:9000", c.GetBaseURL())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenExpiry())

	// "3" is not a valid duration, the default applies
	require.Equal(t, 15*time.Second, c.GetRequestTimeout())

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("BASE_URL", "http://env:1")
		require.Equal(t, "http://env:1", c.GetBaseURL())
	})
}

func TestLoadFile_Missing(t *testing.T) {
	err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestCors_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, *")
	origins := config.New().GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("http://a.test"))
	require.True(t, origins.IsAllowedOrigin("*"))
	require.False(t, origins.IsAllowedOrigin("http://b.test"))
}

func TestToken_RetiredSigningSecrets(t *testing.T) {
	t.Setenv("RETIRED_SIGNING_SECRETS", "")
	require.Empty(t, config.New().GetRetiredSigningSecrets())

	t.Setenv("RETIRED_SIGNING_SECRETS", " old-one ,, old-two")
	require.Equal(t, []string{"old-one", "old-two"}, config.New().GetRetiredSigningSecrets())
}
