package config

import (
	"strings"
)

// ApplyDefaults fills in any zero-valued configuration fields with sensible
// defaults. Called after unmarshaling a config file, and by
// GetDefaultConfig to build the from-scratch default.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyStoreDefaults(&cfg.Store)
	applyWorkerDefaults(&cfg.Worker)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Root == "" {
		cfg.Root = "/tmp/assetforge-store"
	}
	if cfg.VersionString == "" {
		cfg.VersionString = "dev"
	}
	// MaxCacheSize has no default: zero means unbounded, and unlike Root or
	// VersionString there's no sensible non-zero value every deployment
	// should fall back to.
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	// §4.F: the queue is a bounded ring of capacity 256.
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 256
	}
}

// GetDefaultConfig returns a Config with every field set to its default
// value. Load returns it when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
