package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := NewDefault()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(209715200), cfg.CacheSizeBytes)
	assert.Equal(t, int64(10485760), cfg.MaxElementSizeBytes)
	assert.Equal(t, 30000, cfg.RequestTimeoutMS)
	assert.Equal(t, 60000, cfg.CacheStatsIntervalMS)
	assert.False(t, cfg.Debug)
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("PORT", "9001")
	os.Setenv("DEBUG", "true")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Port)
	assert.True(t, cfg.Debug)
}

func TestValidateRejectsElementLargerThanCache(t *testing.T) {
	cfg := NewDefault()
	cfg.CacheSizeBytes = 100
	cfg.MaxElementSizeBytes = 200

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestFromYAMLFileLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\ndebug: true\n"), 0644))

	cfg, err := FromYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.Debug)
	// Untouched fields keep their defaults.
	assert.Equal(t, int64(209715200), cfg.CacheSizeBytes)
}

func TestApplyEnvOverridesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\ncache_size: 1000\n"), 0644))

	cfg, err := FromYAMLFile(path)
	require.NoError(t, err)

	os.Setenv("PORT", "9200")
	defer os.Unsetenv("PORT")

	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, 9200, cfg.Port, "env var must override a value already loaded from YAML")
	assert.Equal(t, int64(1000), cfg.CacheSizeBytes, "fields untouched by env keep the YAML-loaded value")
}
