// Package registry implements the compiler registry and dispatch (§4.E): a
// derived extension-to-compiler-library lookup table, and Prepare, which
// either serves a warm cache hit synchronously or queues a compile job and
// returns a Pending marker immediately.
package registry

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/assetforge/internal/logger"
	"github.com/marmos91/assetforge/pkg/artifact"
	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/compiler"
	"github.com/marmos91/assetforge/pkg/marker"
	"github.com/marmos91/assetforge/pkg/metrics"
	"github.com/marmos91/assetforge/pkg/store"
	"github.com/marmos91/assetforge/pkg/storeerr"
	"github.com/marmos91/assetforge/pkg/worker"
)

// Registry holds every attached compiler library and the extension lookup
// derived from their descriptions.
type Registry struct {
	mu   sync.RWMutex
	libs map[string]*compiler.Library // keyed by extension, including leading '.'
	list []*compiler.Library          // registration order, for List/Count

	store  *store.Store
	worker *worker.Worker

	metrics metrics.RegistryMetrics
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithMetrics attaches an instrumentation sink for Prepare calls. A nil
// sink (the default) costs nothing.
func WithMetrics(m metrics.RegistryMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a Registry that dispatches warm hits against store and queues
// cold compiles onto w.
func New(store *store.Store, w *worker.Worker, opts ...Option) *Registry {
	r := &Registry{
		libs:   make(map[string]*compiler.Library),
		store:  store,
		worker: w,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register attaches lib and maps every extension in its Desc to it.
// Registering a second library for an extension already mapped replaces
// the mapping (last-wins), per §4.E.
func (r *Registry) Register(lib *compiler.Library) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.list = append(r.list, lib)
	for _, kind := range lib.Desc.Kinds {
		if _, exists := r.libs[kind.Extension]; exists {
			logger.Warn("compiler registration replaces existing extension mapping",
				logger.CompilerName(lib.Desc.Name), logger.ChunkPath(kind.Extension))
		}
		r.libs[kind.Extension] = lib
	}
}

// GetCompiler returns the library registered for ext, if any.
func (r *Registry) GetCompiler(ext string) (*compiler.Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[ext]
	return lib, ok
}

// ListCompilers returns every attached library, in registration order.
func (r *Registry) ListCompilers() []*compiler.Library {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*compiler.Library, len(r.list))
	copy(out, r.list)
	return out
}

// CountCompilers returns how many libraries are attached.
func (r *Registry) CountCompilers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// Prepare splits initializer into path/extension/parameters, looks up its
// compiler, and either:
//   - returns NoCompiler synchronously if no library handles the extension;
//   - returns a Ready marker synchronously, never touching the worker
//     queue, if the store already holds a currently-fresh entry for this
//     request (the "warm hit" fast path, grounded on the original engine's
//     CheckExistingAsset — see SPEC_FULL.md §4); or
//   - queues a compile job and returns a Pending marker immediately.
func (r *Registry) Prepare(typeCode uint64, initializer string) (*marker.Marker, error) {
	ext := extensionOf(initializer)

	lib, ok := r.GetCompiler(ext)
	if !ok {
		return nil, storeerr.NewNoCompiler(ext)
	}

	operationID := uuid.NewString()
	logger.Debug("preparing compile request",
		logger.OperationID(operationID), logger.RequestName(initializer),
		logger.TypeCode(typeCode), logger.CompilerName(lib.Desc.Name))

	if m, ok, err := r.tryWarmHit(initializer); err != nil {
		return nil, err
	} else if ok {
		logger.Debug("warm cache hit, skipping worker queue",
			logger.OperationID(operationID), logger.RequestName(initializer))
		if r.metrics != nil {
			r.metrics.IncPrepare(ext, true)
		}
		return m, nil
	}

	m := marker.New(initializer)
	job := &worker.Job{
		TypeCode:    typeCode,
		Initializer: initializer,
		Library:     lib,
		Store:       r.store,
		Marker:      m,
		OperationID: operationID,
	}
	if err := r.worker.Push(job); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IncPrepare(ext, false)
	}
	return m, nil
}

// tryWarmHit checks whether the store already has a valid, never-invalidated
// entry for initializer and, if so, builds the Ready marker for it directly.
// ok=false (err always nil here) means "no usable cache entry, compile
// normally" — including a request the store previously recorded as invalid,
// since that sidecar list is informational only and never gates a retry.
func (r *Registry) tryWarmHit(initializer string) (*marker.Marker, bool, error) {
	result, ok, err := r.store.RetrieveCompileProducts(initializer)
	if err != nil || !ok {
		return nil, false, nil
	}
	if result.Validation.ValidationIndex() != 0 {
		// Stale the instant it was loaded; fall through to a real compile.
		r.store.Release(result.Hash)
		return nil, false, nil
	}

	dir := filepath.Dir(result.BasePath)
	artifacts := make(map[string]*artifact.Collection)
	var mainPath string
	for _, p := range result.Products {
		switch p.TypeID {
		case chunkfile.TypeMetrics:
			col, err := artifact.OpenRaw(filepath.Join(dir, p.ArtifactPath), nil)
			if err != nil {
				r.store.Release(result.Hash)
				return nil, false, nil
			}
			artifacts["metrics"] = col
		case chunkfile.TypeLog:
			col, err := artifact.OpenRaw(filepath.Join(dir, p.ArtifactPath), nil)
			if err != nil {
				r.store.Release(result.Hash)
				return nil, false, nil
			}
			artifacts["log"] = col
		default:
			mainPath = filepath.Join(dir, p.ArtifactPath)
		}
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		r.store.Release(result.Hash)
	}
	if mainPath != "" {
		col, err := artifact.Open(mainPath, release)
		if err != nil {
			r.store.Release(result.Hash)
			return nil, false, nil
		}
		artifacts["main"] = col
	} else {
		release()
	}

	m := marker.New(initializer)
	m.ResolveReady(marker.Locator{
		Path:       result.BasePath,
		Hash:       result.Hash,
		Validation: result.Validation,
	}, artifacts)
	return m, true, nil
}

// extensionOf returns the filesystem extension of a request initializer,
// stripping any trailing ":parameters" selector first.
func extensionOf(initializer string) string {
	path := initializer
	if i := strings.IndexByte(path, ':'); i >= 0 {
		path = path[:i]
	}
	return filepath.Ext(path)
}
