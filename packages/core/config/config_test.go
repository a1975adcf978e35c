package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadConfig_Defaults(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.Equal(t, "console", cfg.Output)
}

func TestFindAndLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	content := `{"timeout": 5000, "validateSSL": false, "rateLimit": 2.5, "headers": {"X-Team": "qa"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hitrunner.config.json"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetFollowRedirects())
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "qa", cfg.Headers["X-Team"])
	assert.Equal(t, dir, cfg.Dir)
	assert.False(t, cfg.IsDefault())
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hitrunnerrc")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}

	merged := base.Merge(&Config{
		Timeout: 1000,
		Bail:    BoolPtr(true),
		Headers: map[string]string{"B": "2"},
		LogDir:  "logs",
	})

	assert.Equal(t, 1000, merged.Timeout)
	assert.True(t, merged.GetBail())
	assert.False(t, merged.GetVerbose())
	assert.Equal(t, "logs", merged.LogDir)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers)
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitrunner.config.json")
	cfg := DefaultConfig()
	cfg.Proxy = "http://proxy:8080"
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy:8080", loaded.Proxy)
}
