package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/marmos91/assetforge/internal/logger"
)

const markerFileName = ".store"

var branchDirPattern = regexp.MustCompile(`^d(\d+)$`)

// resolveBranch implements the startup branch-selection algorithm: scan
// root for existing d<n> directories, read each .store marker, and reuse
// the first one whose version string matches. If none match, allocate the
// first unused d<n> name and stamp it with a fresh marker.
func resolveBranch(root, versionString string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create store root: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("scan store root: %w", err)
	}

	used := make(map[int]bool)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := branchDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		used[n] = true

		branch := filepath.Join(root, e.Name())
		marker := filepath.Join(branch, markerFileName)
		existing, err := readMarkerVersion(marker)
		if err != nil {
			continue // unreadable or malformed marker: skip this branch
		}
		if strings.EqualFold(existing, versionString) {
			logger.Info("reusing existing store branch",
				logger.StoreBranch(e.Name()), logger.StoreRoot(root))
			return branch, nil
		}
	}

	for n := 0; ; n++ {
		if used[n] {
			continue
		}
		name := fmt.Sprintf("d%d", n)
		branch := filepath.Join(root, name)
		if err := os.MkdirAll(branch, 0o755); err != nil {
			return "", fmt.Errorf("create store branch: %w", err)
		}
		if err := writeMarkerVersion(filepath.Join(branch, markerFileName), versionString); err != nil {
			return "", fmt.Errorf("write store marker: %w", err)
		}
		logger.Info("allocated new store branch",
			logger.StoreBranch(name), logger.StoreRoot(root))
		return branch, nil
	}
}

func readMarkerVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeMarkerVersion(path, version string) error {
	return os.WriteFile(path, []byte(version+"\n"), 0o644)
}
