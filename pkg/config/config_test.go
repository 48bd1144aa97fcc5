package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "dev", cfg.Store.VersionString)
	assert.Equal(t, 256, cfg.Worker.QueueCapacity)
	assert.NoError(t, Validate(cfg))
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Store:   StoreConfig{Root: "/custom/store", VersionString: "v2"},
		Worker:  WorkerConfig{QueueCapacity: 64},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase, not replaced")
	assert.Equal(t, "/custom/store", cfg.Store.Root)
	assert.Equal(t, "v2", cfg.Store.VersionString)
	assert.Equal(t, 64, cfg.Worker.QueueCapacity)
}

func TestApplyDefaults_MetricsPortOnlyWhenEnabled(t *testing.T) {
	disabled := &Config{}
	ApplyDefaults(disabled)
	assert.Zero(t, disabled.Metrics.Port, "metrics port stays unset when metrics are disabled")

	enabled := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(enabled)
	assert.Equal(t, 9090, enabled.Metrics.Port)
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsZeroQueueCapacity(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Worker.QueueCapacity = 0
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsInvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestLoadAndSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := GetDefaultConfig()
	original.Store.Root = filepath.Join(dir, "store")
	original.Store.VersionString = "v3"
	original.Worker.QueueCapacity = 128

	require.NoError(t, SaveConfig(original, path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, original.Store.Root, loaded.Store.Root)
	assert.Equal(t, original.Store.VersionString, loaded.Store.VersionString)
	assert.Equal(t, original.Worker.QueueCapacity, loaded.Worker.QueueCapacity)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}
