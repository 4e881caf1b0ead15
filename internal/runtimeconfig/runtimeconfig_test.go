package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndSaveRoundTripsYAML(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	cfg := &Config{
		Host:         "127.0.0.1",
		Port:         8080,
		APIKey:       "test-key",
		ManifestPath: filepath.Join(tmpDir, "manifest.yaml"),
		Provider:     "openai",
		DefaultModel: "gpt-4o",
		Fallbacks:    map[string]string{"retired-model": "gpt-4o"},
	}

	require.NoError(t, manager.Save(cfg))
	assert.True(t, manager.Exists())
	assert.True(t, manager.HasYAML())

	loaded, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, cfg.Host, loaded.Host)
	assert.Equal(t, cfg.Port, loaded.Port)
	assert.Equal(t, cfg.APIKey, loaded.APIKey)
	assert.Equal(t, cfg.ManifestPath, loaded.ManifestPath)
	assert.Equal(t, cfg.Provider, loaded.Provider)
	assert.Equal(t, "gpt-4o", loaded.Fallbacks["retired-model"])
}

func TestLoadAppliesDefaultsWhenFieldsAreZero(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DefaultYAMLFilename), []byte("provider: openai\n"), 0600))

	cfg, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHTTPTimeoutSec, cfg.HTTPTimeoutS)
	assert.NotEmpty(t, cfg.ManifestPath)
}

func TestLoadFallsBackToEnvAPIKeyWhenNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	t.Setenv(EnvAPIKey, "sk-from-env")

	cfg, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.APIKey)
}

func TestLoadFailsWithoutConfigOrEnvAPIKey(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	_, err := manager.Load()
	require.Error(t, err)
}

func TestYAMLTakesPrecedenceOverJSON(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DefaultYAMLFilename), []byte("host: 10.0.0.1\nport: 1\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DefaultConfigFilename), []byte(`{"HOST":"10.0.0.2","PORT":2}`), 0600))

	cfg, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 1, cfg.Port)
}

func TestCreateExampleYAMLWritesLoadableConfig(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	require.NoError(t, manager.CreateExampleYAML())

	cfg, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
}

func TestGetReturnsDefaultsWhenLoadFails(t *testing.T) {
	tmpDir := t.TempDir()
	manager := NewManager(tmpDir)

	cfg := manager.Get()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}
