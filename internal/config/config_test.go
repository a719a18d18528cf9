package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[jwtConfig]
secret = "file-secret"

[databaseConfig]
driver = "postgres"
`)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")
	conf, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", conf.JWTConfig.Secret)
	assert.Equal(t, 8000, conf.MainConfig.Port)
	assert.Equal(t, 5432, conf.DatabaseConfig.Port)
	assert.Equal(t, "channel", conf.MessageMode)
	assert.Equal(t, int64(25), conf.MaxSizeMB)
	assert.Equal(t, DefaultAllowedTypes, conf.AllowedTypes)
	assert.Equal(t, 500, conf.Requests)
	assert.Equal(t, 15, conf.WindowMinutes)
	assert.Equal(t, time.Duration(15), conf.ReadTimeout)
	assert.NotEmpty(t, conf.InstanceId)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[mainConfig]
port = 9000

[jwtConfig]
secret = "file-secret"
`)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "7001")
	t.Setenv("FRONTEND_URL", "https://csr.example.com")
	t.Setenv("DB_HOST", "db.internal")

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", conf.JWTConfig.Secret)
	assert.Equal(t, 7001, conf.MainConfig.Port)
	assert.Equal(t, "https://csr.example.com", conf.FrontendUrl)
	assert.Equal(t, "db.internal", conf.DatabaseConfig.Host)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig(writeConfig(t, `[mainConfig]
port = 8000
`))
	assert.ErrorContains(t, err, "jwt secret is required")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "not = [valid"))
	assert.Error(t, err)
}
