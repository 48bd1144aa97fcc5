package config

import "fmt"

// Validate checks that cfg is internally consistent. Called by Load after
// defaults have been applied; GetDefaultConfig's output always passes.
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level: invalid value %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: invalid value %q", cfg.Logging.Format)
	}

	if cfg.Store.Root == "" {
		return fmt.Errorf("store.root: must not be empty")
	}
	if cfg.Store.VersionString == "" {
		return fmt.Errorf("store.version_string: must not be empty")
	}

	if cfg.Worker.QueueCapacity <= 0 {
		return fmt.Errorf("worker.queue_capacity: must be positive, got %d", cfg.Worker.QueueCapacity)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port: invalid port %d", cfg.Metrics.Port)
	}

	return nil
}
