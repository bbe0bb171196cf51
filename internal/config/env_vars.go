package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	baseURLVar       = "BASE_URL"
	logLevelVar      = "LOG_LEVEL"
	ConfigFileEnvVar = "CONFIG_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

var (
	fileValues     map[string]string
	fileValuesLock sync.RWMutex
)

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Session")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

// GetBaseURL returns the base URL of the identity service (e.g., "https://auth.example.com")
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetLogLevel() string {
	return strings.ToLower(GetEnv(logLevelVar, "info"))
}

// LoadFile reads a flat YAML document whose keys are the lower-cased environment
// variable names (e.g. "base_url: http://localhost:9090"). Environment variables
// still take precedence over file values. An empty path clears previously loaded values.
func LoadFile(path string) error {
	if path == "" {
		fileValuesLock.Lock()
		fileValues = nil
		fileValuesLock.Unlock()
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config.LoadFile read %s: %w", path, err)
	}

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config.LoadFile parse %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}

	fileValuesLock.Lock()
	fileValues = values
	fileValuesLock.Unlock()
	return nil
}

func GetEnv(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}

	fileValuesLock.RLock()
	value, ok := fileValues[strings.ToLower(envVar)]
	fileValuesLock.RUnlock()
	if ok && value != "" {
		return value
	}
	return defaultValue
}

// GetDuration parses a Go duration string ("90s", "1h"), falling back to the default on error.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
