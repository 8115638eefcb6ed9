package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/store", cfg.Storage.Path)
	assert.Equal(t, 5, cfg.Sync.GetMaxAttempts())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigMerge(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment = "production"

[server]
port = 9090

[provider]
base_url = "https://base.example.com"
`), 0644))

	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9191
`), 0644))

	cfg, err := LoadConfig(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "later file overrides earlier")
	assert.Equal(t, "https://base.example.com", cfg.Provider.BaseURL)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigMissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINSYNC_PORT", "7070")
	t.Setenv("FINSYNC_LOG_LEVEL", "debug")
	t.Setenv("FINSYNC_PROVIDER_API_KEY", "k-123")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "k-123", cfg.Provider.APIKey)
}

func TestDurationFallbacks(t *testing.T) {
	p := ProviderConfig{PageTimeout: "not-a-duration"}
	assert.Equal(t, "30s", p.GetPageTimeout().String())

	s := SyncConfig{}
	assert.Equal(t, "15m0s", s.GetInterval().String())
	assert.Equal(t, "2s", s.GetInitialBackoff().String())
	assert.Equal(t, "2m0s", s.GetMaxBackoff().String())
	assert.Equal(t, "24h0m0s", s.GetFullSyncInterval().String())
}
