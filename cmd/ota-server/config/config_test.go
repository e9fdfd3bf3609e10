package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9090

[paths]
kernels_dir = "/srv/kernels"
metadata_dir = "/srv/metadata"

[checksum]
cache = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/kernels", cfg.Paths.KernelsDir)
	assert.Equal(t, "/srv/metadata", cfg.Paths.MetadataDir)
	assert.True(t, cfg.Checksum.Cache)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())

	// Sections absent from the file keep their defaults.
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "OTA Server", cfg.Discovery.Name)
	assert.Equal(t, "OTA Update Server", cfg.Discovery.Description)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Otel.Enabled)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "[server\nport = "))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeConfig(t, "[server]\nport = 70000\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeConfig(t, "[log]\nformat = \"xml\"\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, loadErr, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.ErrorIs(t, loadErr, ErrConfigNotFound)
	assert.Equal(t, Default(), cfg)

	cfg, loadErr, err = LoadOrDefault(writeConfig(t, "[server]\nport = 8181\n"))
	require.NoError(t, err)
	require.NoError(t, loadErr)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestLoadOrDefaultMalformedFile(t *testing.T) {
	for _, content := range []string{"not = [toml", "[server]\nport = 70000\n"} {
		cfg, loadErr, err := LoadOrDefault(writeConfig(t, content))
		require.NoError(t, err)
		require.ErrorIs(t, loadErr, ErrInvalidConfig)
		assert.Equal(t, Default(), cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OTA_HOST", "10.0.0.1")
	t.Setenv("OTA_PORT", "9999")
	t.Setenv("OTA_KERNELS_DIR", "/env/kernels")
	t.Setenv("OTA_METADATA_DIR", "/env/metadata")
	t.Setenv("OTA_LOG_LEVEL", "debug")
	t.Setenv("OTA_OTEL_ENDPOINT", "collector:4317")

	cfg, err := Load(writeConfig(t, "[server]\nhost = \"127.0.0.1\"\nport = 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/env/kernels", cfg.Paths.KernelsDir)
	assert.Equal(t, "/env/metadata", cfg.Paths.MetadataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "collector:4317", cfg.Otel.Endpoint)
}

func TestEnvPortInvalid(t *testing.T) {
	t.Setenv("OTA_PORT", "eighty")

	_, loadErr, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, loadErr, ErrConfigNotFound)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.KernelsDir = filepath.Join(root, "a", "kernels")
	cfg.Paths.MetadataDir = filepath.Join(root, "b", "metadata")

	require.NoError(t, cfg.EnsureDirectories())
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.Paths.KernelsDir, cfg.Paths.MetadataDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
