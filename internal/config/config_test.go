package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "numlink", cfg.MetricsNamespace)
	assert.Equal(t, 256, cfg.EventBufferSize)
	assert.False(t, cfg.StrictByteOrder)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numlink.yaml")
	data := []byte("log_level: debug\nmetrics_namespace: testns\nevent_buffer_size: 32\nstrict_byte_order: true\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "testns", cfg.MetricsNamespace)
	assert.Equal(t, 32, cfg.EventBufferSize)
	assert.True(t, cfg.StrictByteOrder)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "numlink", cfg.MetricsNamespace)
	assert.Equal(t, 256, cfg.EventBufferSize)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.EventBufferSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = ""
	assert.Error(t, cfg.Validate())
}
