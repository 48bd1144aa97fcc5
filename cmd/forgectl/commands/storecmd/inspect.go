package storecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/assetforge/cmd/forgectl/cmdutil"
	"github.com/marmos91/assetforge/pkg/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a store branch's directory and invalid assets",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Root, cfg.Store.VersionString)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	fmt.Println("branch:", st.BranchDir())

	invalid := st.InvalidAssets()
	if len(invalid) == 0 {
		fmt.Println("no invalid assets recorded")
		return nil
	}

	fmt.Printf("%d invalid asset(s) (informational only; each will be recompiled on its next request):\n", len(invalid))
	for _, entry := range invalid {
		fmt.Printf(" - %s: %s\n", entry.RequestName, entry.Reason)
	}
	return nil
}
