// Package config loads assetforge's configuration the way the teacher
// loads dittofs': viper for file/env/flag precedence, mapstructure decode
// hooks for human-readable durations and byte sizes, YAML as the on-disk
// format. Scoped down to the sections this pipeline actually has: logging,
// metrics, the intermediate store, the compile worker, and compiler
// discovery. The control-plane/database/auth/telemetry sections the
// teacher's Config carries have no analogue here — see DESIGN.md.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/assetforge/internal/bytesize"
)

// Config is assetforge's full configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (ASSETFORGE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Environment variables only override keys the configuration file sets.
// When no configuration file is found, Load returns the defaults and reads
// no environment variables.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the Prometheus metrics registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Store configures the intermediate artifact store.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Worker configures the background compile worker.
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`

	// Compiler configures compiler library discovery.
	Compiler CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
}

// LoggingConfig controls logging behavior; mirrors internal/logger.Config.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics registry.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled. When false,
	// every component receives a nil metrics sink (zero overhead).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port the metrics endpoint listens on, when a caller
	// chooses to serve cfg.Metrics via an HTTP handler (neither assetforge's
	// core nor cmd/forgectl starts that server).
	Port int `mapstructure:"port" yaml:"port"`
}

// StoreConfig configures the intermediate artifact store.
type StoreConfig struct {
	// Root is the store's root directory, under which branch subdirectories
	// (d0, d1, ...) are created.
	Root string `mapstructure:"root" yaml:"root"`

	// VersionString identifies the (engine-version, configuration) pair
	// this process's branch should resolve to. Changing it causes a new
	// branch directory to be allocated on next Open.
	VersionString string `mapstructure:"version_string" yaml:"version_string"`

	// WatchDependencies enables the fsnotify-backed live invalidation
	// tracker (pkg/depval.Tracker). When false, freshness is checked only
	// at RetrieveCompileProducts time, never pushed.
	WatchDependencies bool `mapstructure:"watch_dependencies" yaml:"watch_dependencies"`

	// MaxCacheSize bounds a branch directory's on-disk size before
	// `forgectl store gc` starts evicting entries, oldest-written first.
	// Zero means unbounded; gc only removes stray .staging files.
	MaxCacheSize bytesize.ByteSize `mapstructure:"max_cache_size" yaml:"max_cache_size"`
}

// WorkerConfig configures the background compile worker.
type WorkerConfig struct {
	// QueueCapacity bounds the number of queued-but-not-yet-started compile
	// jobs. Push fails once this many are queued; §4.F specifies 256.
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
}

// CompilerConfig configures compiler library discovery.
type CompilerConfig struct {
	// SearchDirs lists additional directories, beyond the executable's own
	// directory, to scan for compiler shared libraries.
	SearchDirs []string `mapstructure:"search_dirs" yaml:"search_dirs"`
}

// Load reads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ASSETFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the ByteSize and time.Duration decode hooks so
// config files can use human-readable strings like "1GB" and "30s".
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/assetforge, or ~/.config/assetforge,
// or "." as a last resort.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "assetforge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
