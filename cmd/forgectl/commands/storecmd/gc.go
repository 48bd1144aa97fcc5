package storecmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/assetforge/cmd/forgectl/cmdutil"
	"github.com/marmos91/assetforge/internal/bytesize"
	"github.com/marmos91/assetforge/pkg/store"
)

// stagingSuffix matches the ".staging.<pid>" suffix Store.StoreCompileProducts
// appends to a file's final name while it's being written (see
// pkg/store/manifest.go's stagingPath).
var stagingSuffix = regexp.MustCompile(`\.staging\.\d+$`)

// sideFileSuffix matches a side file's "-<name>.metrics" or "-<name>.log"
// suffix, capturing the request's base path.
var sideFileSuffix = regexp.MustCompile(`^(.*)-[^/]+\.(metrics|log)$`)

var (
	gcDryRun  bool
	gcMaxSize string
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove stray staging files and evict cold entries over the size budget",
	Long: `StoreCompileProducts writes every file to a .staging sibling before
renaming it into place, so a process killed mid-commit can leave orphaned
staging files behind; gc always removes those first.

If the branch directory's total size then still exceeds store.max_cache_size
(overridable with --max-size), gc evicts whole cached requests — their
manifest, chunk bundle, and side files together — oldest-modified first,
until it fits. A zero budget (the default) disables size-based eviction.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "list files that would be removed without removing them")
	gcCmd.Flags().StringVar(&gcMaxSize, "max-size", "", "override store.max_cache_size for this run (e.g. 2GiB)")
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	budget := cfg.Store.MaxCacheSize
	if gcMaxSize != "" {
		budget, err = bytesize.ParseByteSize(gcMaxSize)
		if err != nil {
			return fmt.Errorf("parsing --max-size: %w", err)
		}
	}

	st, err := store.Open(cfg.Store.Root, cfg.Store.VersionString)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	removedStaging, err := removeStrayStaging(st.BranchDir(), gcDryRun)
	if err != nil {
		return err
	}
	if !gcDryRun {
		fmt.Printf("removed %d stray staging file(s)\n", removedStaging)
	}

	if budget == 0 {
		return nil
	}
	return enforceCacheBudget(st.BranchDir(), budget, gcDryRun)
}

func removeStrayStaging(branchDir string, dryRun bool) (int, error) {
	var removed int
	err := filepath.WalkDir(branchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !stagingSuffix.MatchString(path) {
			return nil
		}
		if dryRun {
			fmt.Println("staging:", path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

// cacheEntry is every file belonging to one cached request (manifest, main
// bundle, side files), grouped by the sanitized request's base path.
type cacheEntry struct {
	base     string
	files    []string
	size     int64
	lastUsed time.Time
}

// groupKey returns the base path a store file belongs to, by stripping
// whichever of the store's known suffixes (§4.C) the path ends in. Files
// that don't match any known suffix (the ".store" marker, the ".index"
// badger directory) are not part of any cacheable request and are skipped.
func groupKey(path string) (string, bool) {
	switch {
	case strings.HasSuffix(path, ".manifest"):
		return strings.TrimSuffix(path, ".manifest"), true
	case strings.HasSuffix(path, ".chunk"):
		return strings.TrimSuffix(path, ".chunk"), true
	default:
		if m := sideFileSuffix.FindStringSubmatch(path); m != nil {
			return m[1], true
		}
		return "", false
	}
}

// enforceCacheBudget removes whole cache entries, oldest-modified first,
// until the branch directory's total size is at or under budget. Eviction
// is by last-write time, not last-read time: the store doesn't track reads,
// so a recompiled entry looks "warm" and a request nobody has asked for
// since it was built looks "cold", same as the original engine's behavior
// of never tracking artifact access separately from artifact creation.
func enforceCacheBudget(branchDir string, budget bytesize.ByteSize, dryRun bool) error {
	entries := make(map[string]*cacheEntry)
	var total int64

	err := filepath.WalkDir(branchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key, ok := groupKey(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		e, ok := entries[key]
		if !ok {
			e = &cacheEntry{base: key}
			entries[key] = e
		}
		e.files = append(e.files, path)
		e.size += info.Size()
		if info.ModTime().After(e.lastUsed) {
			e.lastUsed = info.ModTime()
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return err
	}

	if total <= budget.Int64() {
		return nil
	}

	ordered := make([]*cacheEntry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].lastUsed.Before(ordered[j].lastUsed) })

	var evicted int
	for _, e := range ordered {
		if total <= budget.Int64() {
			break
		}
		if dryRun {
			fmt.Printf("evict: %s (%s, last written %s)\n", e.base, bytesize.ByteSize(e.size), e.lastUsed.Format(time.RFC3339))
			total -= e.size
			continue
		}
		for _, f := range e.files {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("evicting %s: %w", f, err)
			}
		}
		total -= e.size
		evicted++
	}

	if !dryRun {
		fmt.Printf("evicted %d entries, %s now used of %s budget\n", evicted, bytesize.ByteSize(total), budget)
	}
	return nil
}
