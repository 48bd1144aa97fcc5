package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/assetforge/cmd/forgectl/cmdutil"
	"github.com/marmos91/assetforge/internal/passthrough"
	"github.com/marmos91/assetforge/pkg/artifact"
	"github.com/marmos91/assetforge/pkg/compiler"
	"github.com/marmos91/assetforge/pkg/depval"
	"github.com/marmos91/assetforge/pkg/marker"
	"github.com/marmos91/assetforge/pkg/metrics"
	"github.com/marmos91/assetforge/pkg/registry"
	"github.com/marmos91/assetforge/pkg/store"
	"github.com/marmos91/assetforge/pkg/worker"
)

var compileTypeCode uint64

var compileCmd = &cobra.Command{
	Use:   "compile <request>",
	Short: "Compile a single asset request and report the result",
	Long: `compile attaches every compiler library found in the compiler search
directories, prepares one request against the registry, and blocks until its
marker resolves.

The request name is the same string the engine would pass to Prepare: a
relative file path, optionally suffixed with ":parameters" selecting a
sub-target.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().Uint64Var(&compileTypeCode, "type", 0, "type code to pass through to the compiler")
}

func runCompile(cmd *cobra.Command, args []string) error {
	requestName := args[0]

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	var tracker *depval.Tracker
	if cfg.Store.WatchDependencies {
		tracker, err = depval.NewTracker()
		if err != nil {
			return fmt.Errorf("starting dependency tracker: %w", err)
		}
		defer tracker.Close()
	}

	storeOpts := []store.Option{store.WithMetrics(metrics.NewStoreMetrics())}
	if tracker != nil {
		storeOpts = append(storeOpts, store.WithTracker(tracker))
	}
	st, err := store.Open(cfg.Store.Root, cfg.Store.VersionString, storeOpts...)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	libs := compiler.Discover(cmdutil.CompilerSearchDirs(cfg))
	if len(libs) == 0 {
		fmt.Fprintln(os.Stderr, "warning: no compiler libraries found")
	}

	w := worker.New(cfg.Worker.QueueCapacity, worker.WithMetrics(metrics.NewWorkerMetrics()))
	defer w.StallOnPendingOperations(true)

	reg := registry.New(st, w, registry.WithMetrics(metrics.NewRegistryMetrics()))
	reg.Register(passthrough.Library())
	for _, lib := range libs {
		reg.Register(lib)
		defer lib.Detach()
	}

	m, err := reg.Prepare(compileTypeCode, requestName)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", requestName, err)
	}

	switch state := m.StallWhilePending(); state {
	case marker.Ready:
		return reportReady(m)
	case marker.Invalid:
		return reportInvalid(requestName, m)
	default:
		return fmt.Errorf("unexpected marker state %s for %s", state, requestName)
	}
}

func reportReady(m *marker.Marker) error {
	loc := m.GetLocator()
	fmt.Printf("ready: %s (hash=%x)\n", loc.Path, loc.Hash)

	for _, name := range []string{"main", "metrics", "log"} {
		if col := m.GetArtifact(name); col != nil {
			defer col.Close()
		}
	}
	return nil
}

func reportInvalid(requestName string, m *marker.Marker) error {
	if diag := m.GetArtifact("diagnostic"); diag != nil {
		defer diag.Close()
		resolved, err := diag.ResolveRequests([]artifact.Request{{Name: "diagnostic", LoadMode: artifact.Raw}}, nil)
		if err == nil && len(resolved) == 1 {
			fmt.Fprintln(os.Stderr, string(resolved[0].Data))
		}
	}
	return fmt.Errorf("compile failed for %s", requestName)
}
