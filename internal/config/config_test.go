package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
database:
  url: "postgres://localhost/portal"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.GetHost())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.SparkPost.BaseURL)
	assert.Equal(t, "sparkpost", cfg.Dispatch.Provider)
	assert.Equal(t, 16, cfg.Dispatch.BulkWorkers)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.SendTimeout())
	assert.Equal(t, 50, cfg.Throttle.PerSecond)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
dispatch:
  provider: "ses"
  bulk_workers: 8
  send_timeout_seconds: 10
ses:
  region: "eu-west-1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "ses", cfg.Dispatch.Provider)
	assert.Equal(t, 8, cfg.Dispatch.BulkWorkers)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.SendTimeout())
	assert.Equal(t, "eu-west-1", cfg.SES.Region)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/portal"
`)

	t.Setenv("DATABASE_URL", "postgres://prod-host/portal")
	t.Setenv("SPARKPOST_API_KEY", "sp-key")
	t.Setenv("MAIL_BULK_WORKERS", "4")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod-host/portal", cfg.Database.URL)
	assert.Equal(t, "sp-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 4, cfg.Dispatch.BulkWorkers)
}
