// Package cmdutil provides state and helpers shared by forgectl's
// subcommand packages, kept separate from the root command package to
// avoid import cycles (root imports every subcommand package; subcommands
// need the global --config flag root.go parses).
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/assetforge/internal/logger"
	"github.com/marmos91/assetforge/pkg/config"
)

// Flags holds global flag values set by the root command.
var Flags = &GlobalFlags{}

// GlobalFlags are the persistent flags every forgectl subcommand can read.
type GlobalFlags struct {
	ConfigFile string
}

// LoadConfig loads configuration from Flags.ConfigFile (or the default
// location) and initializes the logger from its LoggingConfig.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

// CompilerSearchDirs returns the directories forgectl scans for compiler
// shared libraries: the running executable's own directory, first, followed
// by cfg.Compiler.SearchDirs.
func CompilerSearchDirs(cfg *config.Config) []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, cfg.Compiler.SearchDirs...)
	return dirs
}
