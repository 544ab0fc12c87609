package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: postgres://localhost/customs_test
jwt:
  secret: file-secret
provider:
  sandbox:
    baseUrl: https://sandbox.screening.example
    apiKey: sk-sandbox
`)

	require.NoError(t, LoadConfig(path))

	assert.Equal(t, "0.0.0.0", AppConfig.Server.Host)
	assert.Equal(t, 8080, AppConfig.Server.Port)
	assert.Equal(t, "postgres", AppConfig.Database.Driver)
	assert.Equal(t, 30, AppConfig.Provider.Timeout)
	assert.Equal(t, 24, AppConfig.JWT.ExpiryHours)
	assert.Equal(t, "https://sandbox.screening.example", AppConfig.Provider.Sandbox.BaseURL)
	assert.Empty(t, AppConfig.Provider.Production.BaseURL)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: postgres://localhost/customs_test
`)

	err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
database:
  dsn: postgres://localhost/from_file
jwt:
  secret: file-secret
`)

	t.Setenv("DATABASE_DSN", "postgres://localhost/from_env")
	t.Setenv("SERVER_PORT", "9443")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PROVIDER_SANDBOX_URL", "https://sandbox.env.example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ADMIN_ALLOWED_IPS", "10.8.0.0/24, 203.0.113.10")

	require.NoError(t, LoadConfig(path))

	assert.Equal(t, "postgres://localhost/from_env", AppConfig.Database.DSN)
	assert.Equal(t, 9443, AppConfig.Server.Port)
	assert.Equal(t, "env-secret", AppConfig.JWT.Secret)
	assert.Equal(t, "https://sandbox.env.example", AppConfig.Provider.Sandbox.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, AppConfig.CORS.AllowedOrigins)
	assert.Equal(t, []string{"10.8.0.0/24", "203.0.113.10"}, AppConfig.Admin.AllowedIPs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
