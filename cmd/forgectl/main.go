// Command forgectl is the operator CLI for the asset compilation pipeline:
// it drives one-shot compiles against an intermediate store, inspects a
// store's branch contents, and lists attached compiler libraries.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/assetforge/cmd/forgectl/commands"
	_ "github.com/marmos91/assetforge/pkg/metrics/prometheus"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
