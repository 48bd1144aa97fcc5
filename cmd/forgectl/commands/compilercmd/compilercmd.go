// Package compilercmd implements forgectl's "compiler" subcommands: listing
// the compiler shared libraries discovered for a run.
package compilercmd

import "github.com/spf13/cobra"

// Cmd is the parent command for compiler library inspection.
var Cmd = &cobra.Command{
	Use:   "compiler",
	Short: "Inspect attached compiler libraries",
}

func init() {
	Cmd.AddCommand(listCmd)
}
