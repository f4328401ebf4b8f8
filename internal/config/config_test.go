package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1.0, cfg.Filter.HighpassHz)
	assert.Equal(t, 40.0, cfg.Filter.LowpassHz)
	assert.Equal(t, -0.2, cfg.Epochs.Tmin)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
filter:
  lowpass_hz: 30
report:
  title: Night one
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30.0, cfg.Filter.LowpassHz)
	assert.Equal(t, "Night one", cfg.Report.Title)
	// Untouched values keep their defaults.
	assert.Equal(t, 1.0, cfg.Filter.HighpassHz)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	t.Setenv("MEEG_LOG_LEVEL", "warn")
	t.Setenv("MEEG_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(":\n  - ["), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("MEEG_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.Error(t, err)
}
