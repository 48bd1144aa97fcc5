package compiler

import (
	"fmt"
	"path/filepath"
	"plugin"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/assetforge/internal/logger"
)

// maxConcurrentAttach bounds how many compiler shared libraries Discover
// loads at once. plugin.Open does real disk I/O and dlopen(3) work per
// call; a handful of candidates can safely run concurrently, but an
// unbounded fan-out over a search directory with dozens of them would just
// thrash the disk.
const maxConcurrentAttach = 4

// discoveryGlob matches the platform-specific shared-library naming
// convention every compiler plugin is built under, e.g.
// "ColladaConversion.so".
const discoveryGlob = "*Conversion*.so"

// requiredSymbols every compiler plugin must export. CreateCompileOperation
// is the one the loader treats as a hard failure if absent; the others
// degrade to a missing-capability no-op.
const (
	symGetCompilerDesc        = "GetCompilerDesc"
	symCreateCompileOperation = "CreateCompileOperation"
	symGetVersionInformation  = "GetVersionInformation"
	symAttachLibrary          = "AttachLibrary"
	symDetachLibrary          = "DetachLibrary"
)

// Discover scans each directory in dirs for files matching discoveryGlob
// and attaches each one, up to maxConcurrentAttach at a time. A directory
// that doesn't exist is skipped; individual library load failures are
// logged and skipped rather than aborting discovery for the rest. The
// returned slice preserves the order candidates were found in, regardless
// of which attach finished first.
func Discover(dirs []string) []*Library {
	var paths []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, discoveryGlob))
		if err != nil {
			logger.Warn("compiler discovery glob failed", logger.ChunkPath(dir), logger.Err(err))
			continue
		}
		paths = append(paths, matches...)
	}

	attached := make([]*Library, len(paths))
	var g errgroup.Group
	g.SetLimit(maxConcurrentAttach)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			lib, err := Attach(path)
			if err != nil {
				logger.Warn("failed to attach compiler library", logger.ChunkPath(path), logger.Err(err))
				return nil
			}
			attached[i] = lib
			return nil
		})
	}
	_ = g.Wait() // Attach failures are logged, never returned; Wait always succeeds.

	libs := make([]*Library, 0, len(attached))
	for _, lib := range attached {
		if lib != nil {
			libs = append(libs, lib)
		}
	}
	return libs
}

// Attach opens the shared library at path, resolves its entry points, and
// calls AttachLibrary followed by GetCompilerDesc. A library missing
// CreateCompileOperation is a hard failure; other missing optional entry
// points just leave that capability unset.
func Attach(path string) (*Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open compiler library %s: %w", path, err)
	}

	createSym, err := p.Lookup(symCreateCompileOperation)
	if err != nil {
		return nil, fmt.Errorf("compiler library %s missing %s: %w", path, symCreateCompileOperation, err)
	}
	createFn, ok := createSym.(func(string) (Operation, error))
	if !ok {
		return nil, fmt.Errorf("compiler library %s: %s has unexpected signature", path, symCreateCompileOperation)
	}

	if attachSym, err := p.Lookup(symAttachLibrary); err == nil {
		if attachFn, ok := attachSym.(func()); ok {
			attachFn()
		}
	}

	var desc Desc
	if descSym, err := p.Lookup(symGetCompilerDesc); err == nil {
		if descFn, ok := descSym.(func() Desc); ok {
			desc = descFn()
		}
	}

	var version VersionInfo
	if verSym, err := p.Lookup(symGetVersionInformation); err == nil {
		if verFn, ok := verSym.(func() VersionInfo); ok {
			version = verFn()
		}
	}

	var detachFn func()
	if detachSym, err := p.Lookup(symDetachLibrary); err == nil {
		if fn, ok := detachSym.(func()); ok {
			detachFn = fn
		}
	}

	return &Library{
		Desc:            desc,
		Version:         version,
		createOperation: createFn,
		detach:          detachFn,
	}, nil
}
