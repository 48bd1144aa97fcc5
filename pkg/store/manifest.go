package store

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/assetforge/pkg/depval"
	"github.com/marmos91/assetforge/pkg/storeerr"
)

// manifestVersion guards the on-disk manifest layout. Bump it whenever a
// field is added or renamed in a way older readers can't tolerate.
const manifestVersion uint32 = 1

// product is one compiled artifact recorded in a manifest: its chunk type
// and the path (relative to the branch directory) it was written to.
type product struct {
	TypeID       uint64 `yaml:"type_id"`
	ArtifactPath string `yaml:"artifact_path"`
}

// manifestDependency is one dependency entry as it appears on disk. State is
// one of "normal", "doesnotexist", "shadowed"; ModTime is only meaningful
// for "normal".
type manifestDependency struct {
	Path    string `yaml:"path"`
	ModTime uint64 `yaml:"mod_time,omitempty"`
	Status  string `yaml:"status"`
}

// manifest is the per-request record the store writes beside the compiled
// artifacts: where the request's files live, whether compilation last
// succeeded, the artifact list, and the dependency states used to validate
// freshness on a later load.
type manifest struct {
	Version      uint32               `yaml:"version"`
	BasePath     string               `yaml:"base_path"`
	Invalid      bool                 `yaml:"invalid"`
	Products     []product            `yaml:"products"`
	Dependencies []manifestDependency `yaml:"dependencies"`
}

func statusToString(s depval.Status) string {
	switch s {
	case depval.StatusNormal:
		return "normal"
	case depval.StatusDoesNotExist:
		return "doesnotexist"
	case depval.StatusShadowed:
		return "shadowed"
	default:
		return "normal"
	}
}

func statusFromString(s string) depval.Status {
	switch s {
	case "doesnotexist":
		return depval.StatusDoesNotExist
	case "shadowed":
		return depval.StatusShadowed
	default:
		return depval.StatusNormal
	}
}

func newManifestDependency(fs depval.FileState) manifestDependency {
	return manifestDependency{
		Path:    fs.Path,
		ModTime: fs.ModTime,
		Status:  statusToString(fs.Status),
	}
}

func (d manifestDependency) toFileState() depval.FileState {
	return depval.FileState{
		Path:    d.Path,
		ModTime: d.ModTime,
		Status:  statusFromString(d.Status),
	}
}

// writeManifest serializes m as YAML to path.
func writeManifest(path string, m manifest) error {
	m.Version = manifestVersion
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// readManifest parses the manifest at path. A missing file or malformed
// contents both surface as FileNotFound/FormatError respectively, which the
// store's retrieval path treats as "no cached result".
func readManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest{}, storeerr.NewFileNotFound(path)
		}
		return manifest{}, storeerr.Wrap(storeerr.FileNotFound, "reading manifest", path, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, storeerr.Wrap(storeerr.FormatError, "parsing manifest", path, err)
	}
	if m.Version != manifestVersion {
		return manifest{}, storeerr.NewUnsupportedVersion(path, m.Version, manifestVersion)
	}
	return m, nil
}

// manifestPath derives the YAML manifest path for a sanitized request name
// inside a branch directory — the same base path the main chunk bundle and
// any side files are derived from, plus a ".manifest" extension. The
// manifest is not stored at the bare base path.
func manifestPath(base string) string {
	return base + ".manifest"
}

func sidecarPath(base, name, suffix string) string {
	return base + "-" + name + suffix
}

func bundlePath(base string) string {
	return base + ".chunk"
}

func stagingPath(finalPath string) string {
	return finalPath + ".staging." + strconv.Itoa(os.Getpid())
}
