// Package store implements the on-disk intermediate artifact cache: one
// branch directory per (engine-version, configuration) pair, holding
// manifests plus the chunk files and side files they describe. It decides
// whether a cached entry is still valid and commits new ones atomically.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/assetforge/internal/logger"
	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/depval"
	"github.com/marmos91/assetforge/pkg/metrics"
	"github.com/marmos91/assetforge/pkg/storeerr"
)

// Store owns one branch directory. Exactly one Store should exist per
// branch per process — concurrent Stores over the same directory would
// race on the secondary index and the staged-commit rename sequence.
type Store struct {
	root          string
	versionString string
	branchDir     string

	refcounts *refcountTable
	index     *index
	tracker   *depval.Tracker // nil disables live invalidation watching

	mu      sync.Mutex // serializes StoreCompileProducts against itself
	closed  bool
	metrics metrics.StoreMetrics
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithTracker attaches a dependency-validation Tracker so artifacts
// retrieved from this store keep getting invalidated as their source files
// change, for as long as the caller holds the returned artifact collection.
func WithTracker(t *depval.Tracker) Option {
	return func(s *Store) { s.tracker = t }
}

// WithMetrics attaches an instrumentation sink for retrieve/commit/refcount
// events. A nil sink (the default) costs nothing.
func WithMetrics(m metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Open resolves (or creates) the branch directory for versionString under
// root and opens its secondary index.
func Open(root, versionString string, opts ...Option) (*Store, error) {
	branch, err := resolveBranch(root, versionString)
	if err != nil {
		return nil, err
	}

	ix, err := openIndex(branch)
	if err != nil {
		return nil, err
	}

	s := &Store{
		root:          root,
		versionString: versionString,
		branchDir:     branch,
		refcounts:     newRefcountTable(),
		index:         ix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the store's secondary index handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}

// BranchDir returns the absolute path of the branch directory this Store
// resolved to.
func (s *Store) BranchDir() string {
	return s.branchDir
}

// MakeIntermediateName produces the cache file base path for request,
// sanitized for the filesystem.
func (s *Store) MakeIntermediateName(request string) string {
	return filepath.Join(s.branchDir, sanitizeRequestName(request))
}

// ShadowFile marks path so GetDependentFileState reports it as changed,
// forcing anything depending on it to rebuild on the next retrieval.
func (s *Store) ShadowFile(path string) {
	depval.ShadowFile(path)
}

// Product is a single compiled artifact ready to be written into the
// store: its chunk type, version, logical name, and payload bytes.
type Product struct {
	TypeID  uint64
	Version uint32
	Name    string
	Data    []byte
}

const (
	chunkTypeMetrics = chunkfile.TypeMetrics
	chunkTypeLog     = chunkfile.TypeLog
)

// isSideFile reports whether a product is written as its own sibling file
// rather than packed into the main chunk bundle.
func isSideFile(p Product) bool {
	return p.TypeID == chunkTypeMetrics || p.TypeID == chunkTypeLog
}

// RetrieveResult bundles what a successful RetrieveCompileProducts call
// needs to construct an artifact collection: the manifest's base path, the
// validation object guarding its freshness, and its content hash (for
// refcount release).
type RetrieveResult struct {
	BasePath   string
	Validation *depval.Validation
	Hash       uint64
	Products   []product
}

// Release drops this result's reader refcount, making the underlying
// files eligible for overwrite again once it reaches zero.
func (s *Store) Release(hash uint64) {
	s.refcounts.release(hash)
	if s.metrics != nil {
		s.metrics.SetReaderCount(hash, int32(s.refcounts.count(hash)))
	}
}

// InvalidAssets lists every request this branch's index currently records
// as having last failed compilation, plus the failure reason, without
// reading a single manifest off disk. This is purely informational (see
// SPEC_FULL.md §4): it never blocks RetrieveCompileProducts from serving,
// or Prepare from re-queuing, a later attempt at the same request. A CLI
// inspector can report "N invalid assets" from this alone; see
// cmd/forgectl's `store inspect`.
func (s *Store) InvalidAssets() []InvalidAssetEntry {
	return s.index.listInvalid()
}

// RetrieveCompileProducts looks up a previously-stored request. It returns
// ok=false (with no error) whenever there is simply no usable cached
// result — missing manifest, malformed manifest, a stale dependency, or a
// manifest recording its last compile as invalid — which is the
// common case a caller should treat as "need to recompile", not a failure.
// A past `CompilerFailure` never permanently gates a request: the sidecar
// list recorded by InvalidAssets is purely informational (see
// SPEC_FULL.md §4), not a cache of terminal failures, so a caller retrying
// a once-broken source file (e.g. after fixing a malformed asset) always
// gets a fresh compile rather than the stale failure forever.
func (s *Store) RetrieveCompileProducts(requestName string) (result RetrieveResult, ok bool, err error) {
	if s.metrics != nil {
		defer func() { s.metrics.IncRetrieve(ok) }()
	}

	base := s.MakeIntermediateName(requestName)
	mpath := manifestPath(base)

	m, err := readManifest(mpath)
	if err != nil {
		var serr *storeerr.Error
		if errors.As(err, &serr) && (serr.Kind.Recoverable() || serr.Kind == storeerr.FormatError) {
			return RetrieveResult{}, false, nil
		}
		return RetrieveResult{}, false, err
	}
	if m.Invalid {
		return RetrieveResult{}, false, nil
	}

	validation := depval.NewValidation()
	for _, dep := range m.Dependencies {
		recorded := dep.toFileState()
		current := depval.GetDependentFileState(recorded.Path)
		if !current.Equal(recorded) {
			logger.Debug("cached asset invalidated by dependency",
				logger.RequestName(requestName), logger.DependencyPath(recorded.Path))
			return RetrieveResult{}, false, nil
		}
		validation.RecordObservedDependency(current)
		if s.tracker != nil {
			if err := s.tracker.RegisterFileDependency(validation, recorded.Path); err != nil {
				logger.Warn("failed to register live dependency watch",
					logger.DependencyPath(recorded.Path), logger.Err(err))
			}
		}
	}

	sanitized := sanitizeRequestName(requestName)
	hash, found := s.index.lookupHash(sanitized)
	if !found {
		hash = requestHash(sanitized)
		s.index.recordHash(sanitized, hash)
	}
	s.refcounts.acquire(hash)
	if s.metrics != nil {
		s.metrics.SetReaderCount(hash, int32(s.refcounts.count(hash)))
	}

	return RetrieveResult{
		BasePath:   base,
		Validation: validation,
		Hash:       hash,
		Products:   m.Products,
	}, true, nil
}

// StoreCompileProducts writes a request's compiled products and dependency
// manifest atomically: every file is written to a `.staging` sibling first,
// and only after all staging writes succeed are they renamed over their
// final names. A reader observing the manifest afterward is guaranteed to
// see every final-named file it references.
func (s *Store) StoreCompileProducts(requestName string, products []Product, invalid bool, dependencies []depval.FileState, buildVersion, buildDate string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics != nil {
		defer func() { s.metrics.IncCommit(err == nil) }()
	}

	base := s.MakeIntermediateName(requestName)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create branch subdirectory: %w", err)
	}

	var mainArtifacts []chunkfile.Artifact
	var sideFiles []pendingSideFile
	var manifestProducts []product

	for _, p := range products {
		if isSideFile(p) {
			suffix := ".metrics"
			if p.TypeID == chunkTypeLog {
				suffix = ".log"
			}
			final := sidecarPath(base, p.Name, suffix)
			sideFiles = append(sideFiles, pendingSideFile{final, stagingPath(final), p.Data})
			manifestProducts = append(manifestProducts, product{TypeID: p.TypeID, ArtifactPath: filepath.Base(final)})
			continue
		}
		mainArtifacts = append(mainArtifacts, chunkfile.Artifact{
			TypeID: p.TypeID, Version: p.Version, Name: p.Name, Data: p.Data,
		})
		manifestProducts = append(manifestProducts, product{TypeID: p.TypeID, ArtifactPath: filepath.Base(bundlePath(base))})
	}

	if err := rejectDuplicateFinalNames(sideFiles); err != nil {
		return err
	}

	type pendingRename struct{ staging, final string }
	var renames []pendingRename

	if len(mainArtifacts) > 0 {
		finalChunk := bundlePath(base)
		stageChunk := stagingPath(finalChunk)
		f, err := os.Create(stageChunk)
		if err != nil {
			return fmt.Errorf("create staging chunk file: %w", err)
		}
		if err := chunkfile.BuildFile(f, mainArtifacts, buildVersion, buildDate, nil); err != nil {
			f.Close()
			os.Remove(stageChunk)
			return fmt.Errorf("write staging chunk file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(stageChunk)
			return fmt.Errorf("close staging chunk file: %w", err)
		}
		renames = append(renames, pendingRename{stageChunk, finalChunk})
	}

	for _, sf := range sideFiles {
		if err := os.WriteFile(sf.staging, sf.data, 0o644); err != nil {
			return fmt.Errorf("write staging side file: %w", err)
		}
		renames = append(renames, pendingRename{sf.staging, sf.final})
	}

	manifestDeps := make([]manifestDependency, 0, len(dependencies))
	for _, d := range dependencies {
		manifestDeps = append(manifestDeps, newManifestDependency(d))
	}
	m := manifest{
		BasePath:     filepath.Dir(base),
		Invalid:      invalid,
		Products:     manifestProducts,
		Dependencies: manifestDeps,
	}
	finalManifest := manifestPath(base)
	stageManifest := stagingPath(finalManifest)
	if err := writeManifest(stageManifest, m); err != nil {
		return fmt.Errorf("write staging manifest: %w", err)
	}
	renames = append(renames, pendingRename{stageManifest, finalManifest})

	// All staging files are written and closed; commit by rename. Remove
	// any existing final-named file first since some filesystems refuse to
	// rename over an existing destination.
	for _, r := range renames {
		_ = os.Remove(r.final)
		if err := os.Rename(r.staging, r.final); err != nil {
			return fmt.Errorf("commit staged file %s: %w", r.final, err)
		}
	}

	sanitized := sanitizeRequestName(requestName)
	if invalid {
		s.index.markInvalid(sanitized, "compile failed, see manifest")
	} else {
		s.index.clearInvalid(sanitized)
	}
	s.index.recordHash(sanitized, requestHash(sanitized))

	logger.Info("committed compile products",
		logger.RequestName(requestName), logger.StoreBranch(filepath.Base(s.branchDir)),
		logger.Invalidated(invalid))
	return nil
}

// pendingSideFile is a side-file artifact awaiting the staged-commit
// rename: its final destination, its staging path, and its payload.
type pendingSideFile struct {
	final, staging string
	data           []byte
}

// rejectDuplicateFinalNames is the debug-mode-only check the original
// engine runs: two side files must never resolve to the same final path.
// The main bundle and the manifest can't collide with a side file since
// their extensions (.chunk, .manifest) differ from the side-file suffixes
// (-<name>.metrics, -<name>.log).
func rejectDuplicateFinalNames(sideFiles []pendingSideFile) error {
	seen := make(map[string]bool, len(sideFiles))
	for _, sf := range sideFiles {
		if seen[sf.final] {
			return fmt.Errorf("duplicate final artifact path: %s", sf.final)
		}
		seen[sf.final] = true
	}
	return nil
}
