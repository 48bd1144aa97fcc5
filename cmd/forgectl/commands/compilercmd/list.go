package compilercmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/assetforge/cmd/forgectl/cmdutil"
	"github.com/marmos91/assetforge/internal/passthrough"
	"github.com/marmos91/assetforge/pkg/compiler"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List compiler libraries discovered in the search directories",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	libs := append([]*compiler.Library{passthrough.Library()}, compiler.Discover(cmdutil.CompilerSearchDirs(cfg))...)

	for _, lib := range libs {
		fmt.Printf("%s (%s, built %s)\n", lib.Desc.Name, lib.Version.VersionString, lib.Version.BuildDate)
		for _, kind := range lib.Desc.Kinds {
			fmt.Printf("  %s type_mask=%#x\n", kind.Extension, kind.TypeMask)
		}
		lib.Detach()
	}
	return nil
}
