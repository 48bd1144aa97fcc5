// Package depval tracks the freshness of cached artifacts: which source
// files a cached artifact was built from, whether any of them has changed
// since, and how that change propagates up a DAG of dependent artifacts.
//
// The C++ original modeled this graph with reference-counted
// DependencyValidation nodes linked by raw parent/child smart pointers,
// which is exactly the cyclic-ownership pattern a Go port should not carry
// over. Here a Validation holds plain *Validation pointers to its parents,
// never the reverse; there is no central arena or index table, and the
// Tracker holds only its file-watch subscriptions. Cycles are rejected at
// registration time rather than relied on not to occur.
package depval

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/marmos91/assetforge/pkg/storeerr"
)

// Status is the observed state of one tracked dependency path.
type Status int

const (
	// StatusNormal means the file exists and its modification time was
	// read successfully.
	StatusNormal Status = iota
	// StatusDoesNotExist means the file was absent when observed.
	StatusDoesNotExist
	// StatusShadowed means the path was marked via ShadowFile: the
	// dependency validator treats it as changed regardless of what the
	// filesystem reports.
	StatusShadowed
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusDoesNotExist:
		return "DoesNotExist"
	case StatusShadowed:
		return "Shadowed"
	default:
		return "Unknown"
	}
}

// FileState is a snapshot of one dependent file: its path, modification
// time (as a unix-nanosecond count, since that's what the comparison in
// §3 needs), and status. Two states compare equal iff all three fields
// match.
type FileState struct {
	Path    string
	ModTime uint64
	Status  Status
}

// Equal reports whether two file states are identical.
func (s FileState) Equal(other FileState) bool {
	return s.Path == other.Path && s.ModTime == other.ModTime && s.Status == other.Status
}

// Validation is the freshness record for one cached artifact: the set of
// dependent files it was built from, a monotonic validation index bumped
// whenever one of them changes, and the set of parent validations to
// notify in turn.
type Validation struct {
	mu    sync.Mutex
	deps  map[string]FileState
	index atomic.Uint32

	parentsMu sync.Mutex
	parents   []*Validation
}

// NewValidation creates an empty Validation with validation index 0
// ("never invalidated since creation").
func NewValidation() *Validation {
	return &Validation{deps: make(map[string]FileState)}
}

// ValidationIndex returns the current validation index. 0 means the
// artifact has never been invalidated since this Validation was created.
func (v *Validation) ValidationIndex() uint32 {
	return v.index.Load()
}

// Dependencies returns a snapshot of the recorded dependent file states.
func (v *Validation) Dependencies() []FileState {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]FileState, 0, len(v.deps))
	for _, s := range v.deps {
		out = append(out, s)
	}
	return out
}

// recordDependency stores (or overwrites) the recorded state for path.
func (v *Validation) recordDependency(state FileState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deps[state.Path] = state
}

// RecordObservedDependency stores a dependency state a caller has already
// observed (e.g. while validating a loaded manifest), without re-reading
// the filesystem. Equivalent to recordDependency, exposed for callers
// outside this package that build a Validation incrementally.
func (v *Validation) RecordObservedDependency(state FileState) {
	v.recordDependency(state)
}

// OnChange atomically bumps this validation's index, then propagates to
// every parent. Safe for concurrent use and concurrent propagation paths
// that share an ancestor.
func (v *Validation) OnChange() {
	v.index.Add(1)

	v.parentsMu.Lock()
	parents := append([]*Validation(nil), v.parents...)
	v.parentsMu.Unlock()

	for _, p := range parents {
		p.OnChange()
	}
}

// RegisterAssetDependency makes child a dependency of parent: when child is
// invalidated, parent is invalidated too. Returns AssetDependencyError if
// adding this edge would create a cycle.
func RegisterAssetDependency(parent, child *Validation) error {
	if parent == child {
		return storeerr.NewAssetDependencyError("dependency validation cannot depend on itself")
	}
	if isAncestor(parent, child) {
		return storeerr.NewAssetDependencyError("registering this dependency would create a cycle")
	}

	child.parentsMu.Lock()
	defer child.parentsMu.Unlock()
	child.parents = append(child.parents, parent)
	return nil
}

// isAncestor reports whether target is reachable by walking node's parent
// chain — i.e. whether node already (directly or transitively) notifies
// target. Used to detect the cycle that would form if node were made a
// parent of target (since target would then eventually notify itself).
func isAncestor(node, target *Validation) bool {
	visited := make(map[*Validation]bool)
	var walk func(*Validation) bool
	walk = func(n *Validation) bool {
		if visited[n] {
			return false
		}
		visited[n] = true

		n.parentsMu.Lock()
		parents := append([]*Validation(nil), n.parents...)
		n.parentsMu.Unlock()

		for _, p := range parents {
			if p == target || walk(p) {
				return true
			}
		}
		return false
	}
	return walk(node)
}

// GetDependentFileState observes path on the filesystem right now and
// returns its current FileState. If path has been shadowed via ShadowFile,
// the shadowed status is returned regardless of what the filesystem says.
func GetDependentFileState(path string) FileState {
	if IsShadowed(path) {
		return FileState{Path: path, Status: StatusShadowed}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{Path: path, Status: StatusDoesNotExist}
		}
		// Any other stat failure (permission, I/O) is treated the same as
		// "does not exist" from the freshness check's point of view: the
		// file cannot be confirmed unchanged.
		return FileState{Path: path, Status: StatusDoesNotExist}
	}

	return FileState{
		Path:    path,
		ModTime: uint64(info.ModTime().UnixNano()),
		Status:  StatusNormal,
	}
}

// IsFresh compares a Validation's recorded dependency states against the
// filesystem right now. Any mismatch — a different modification time, a
// file that now exists or no longer exists, or a status change — means the
// artifact is stale.
func IsFresh(v *Validation) bool {
	for _, recorded := range v.Dependencies() {
		current := GetDependentFileState(recorded.Path)
		if !current.Equal(recorded) {
			return false
		}
	}
	return true
}

// String is used in diagnostic log lines and error messages.
func (s FileState) String() string {
	switch s.Status {
	case StatusDoesNotExist:
		return fmt.Sprintf("%s (does not exist)", s.Path)
	case StatusShadowed:
		return fmt.Sprintf("%s (shadowed)", s.Path)
	default:
		return fmt.Sprintf("%s (modtime=%d)", s.Path, s.ModTime)
	}
}
