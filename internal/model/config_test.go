package model_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/rental-console/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, model.DefaultVerifyInterval, cfg.Session.VerifyInterval)
	assert.Equal(t, model.DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, model.DefaultMaxLive, cfg.Notifications.MaxLive)
	assert.Equal(t, model.CredentialBackendKeyring, cfg.Storage.CredentialBackend)
	assert.NotEmpty(t, cfg.Backend.BaseURL)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://rentals.example.com/api/
  timeout: 3s
session:
  verify_interval: 2m
poll:
  interval: 30s
notifications:
  max_live: 25
storage:
  db_path: /tmp/console-test.db
  credential_backend: SQLite
`)

	cfg, err := model.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://rentals.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Session.VerifyInterval)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 25, cfg.Notifications.MaxLive)
	assert.Equal(t, model.CredentialBackendSQLite, cfg.Storage.CredentialBackend)
	assert.Equal(t, "/tmp/console-test.db", cfg.Storage.DBPath)
}

func TestLoadConfig_NonPositiveTunablesFallBack(t *testing.T) {
	path := writeConfig(t, `
poll:
  interval: 0s
notifications:
  max_live: -3
`)

	cfg, err := model.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, model.DefaultMaxLive, cfg.Notifications.MaxLive)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	path := writeConfig(t, "backend:\n  base_url: http://file.example/api\n")
	t.Setenv("RENTAL_POLL_INTERVAL", "45s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("base-url", "", "")
	fs.String("log-level", "", "")
	fs.String("db", "", "")
	require.NoError(t, fs.Parse([]string{"--base-url", "http://flag.example/api", "--log-level", "debug"}))

	cfg, err := model.LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example/api", cfg.Backend.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 45*time.Second, cfg.Poll.Interval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("unknown credential backend", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  credential_backend: vault\n")
		_, err := model.LoadConfig(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credential_backend")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "backend: [unterminated\n")
		_, err := model.LoadConfig(path, nil)
		require.Error(t, err)
	})
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := model.LoadConfig(path, nil)
	require.NoError(t, err)
	cfg.Poll.Interval = 20 * time.Second
	cfg.Storage.CredentialBackend = model.CredentialBackendSQLite
	require.NoError(t, model.SaveConfig(path, cfg))

	loaded, err := model.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, loaded.Poll.Interval)
	assert.Equal(t, model.CredentialBackendSQLite, loaded.Storage.CredentialBackend)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rental", "config.yaml")

	written, err := model.WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := model.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, model.DefaultMaxLive, cfg.Notifications.MaxLive)

	cfg.Poll.Interval = time.Minute
	require.NoError(t, model.SaveConfig(path, cfg))

	written, err = model.WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.False(t, written, "an existing config is never overwritten")

	cfg, err = model.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Poll.Interval)
}
