// Package commands implements forgectl's CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/assetforge/cmd/forgectl/cmdutil"
	"github.com/marmos91/assetforge/cmd/forgectl/commands/compilercmd"
	"github.com/marmos91/assetforge/cmd/forgectl/commands/storecmd"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "forgectl",
	Short: "forgectl - asset compilation pipeline CLI",
	Long: `forgectl drives the asset compilation and caching pipeline from the
command line: it queues compile requests against an intermediate store,
inspects a store branch's cached and invalid assets, and lists the compiler
libraries attached for a given run.

Use "forgectl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/assetforge/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(storecmd.Cmd)
	rootCmd.AddCommand(compilercmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
