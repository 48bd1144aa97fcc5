// Package storecmd implements forgectl's "store" subcommands: operations
// against a store branch directly, without going through the compiler
// registry or worker queue.
package storecmd

import "github.com/spf13/cobra"

// Cmd is the parent command for store maintenance.
var Cmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the intermediate artifact store",
	Long: `store commands operate directly against a branch directory's index
and manifests.

Examples:
  # Show the resolved branch directory and any invalid assets
  forgectl store inspect

  # Remove staging files left by an interrupted commit
  forgectl store gc`,
}

func init() {
	Cmd.AddCommand(inspectCmd)
	Cmd.AddCommand(gcCmd)
}
