package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "timesheet.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":8787", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "nested", "session.json"), cfg.SessionFile)
	assert.Equal(t, filepath.Join(dir, "nested", "backend.db"), cfg.DBPath)
	assert.False(t, cfg.Configured())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	body := "backend_url: https://ts.example.com/\napi_key: anon\nrequest_timeout: 3s\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ts.example.com", cfg.BackendURL)
	assert.Equal(t, "anon", cfg.APIKey)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Configured())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: from-file\n"), 0o644))
	t.Setenv("TIMESHEET_API_KEY", "from-env")
	t.Setenv("TIMESHEET_LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestEnvNotWrittenToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	t.Setenv("TIMESHEET_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request_timeout: 0s\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDirHonoursXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "timesheet"), dir)
}
