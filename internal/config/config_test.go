package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 100, cfg.MaxEmails)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.ReplyEnabled())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "8081"
store_backend: redis
redis_url: redis://localhost:6379/0
max_emails: 50
workflow_timeout: 5s
allowed_origins:
  - http://localhost:5173
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_EMAILS", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 25, cfg.MaxEmails)
	assert.Equal(t, 5*time.Second, cfg.WorkflowTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.StoreBackend = BackendPostgres
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/intake"
	assert.NoError(t, cfg.Validate())

	cfg.StoreBackend = "dynamo"
	assert.Error(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}

func TestValidateRejectsDevSecretInProduction(t *testing.T) {
	cfg := defaults()
	cfg.Env = "production"
	assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")

	cfg.SessionSecret = "a-real-secret"
	assert.NoError(t, cfg.Validate())

	cfg.Env = "development"
	cfg.SessionSecret = DevSessionSecret
	assert.NoError(t, cfg.Validate())
}
