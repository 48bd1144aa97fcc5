// Package artifact implements the lazy reader over one stored request's
// compiled output: opening the main chunk file on demand, resolving a list
// of typed chunk requests into buffers, and releasing the store's reader
// refcount once the caller is done with it.
package artifact

import (
	"fmt"
	"os"

	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/storeerr"
)

// LoadMode controls how much work ResolveRequests does for one requested
// chunk.
type LoadMode int

const (
	// Raw reads the chunk's payload into a fresh buffer.
	Raw LoadMode = iota
	// DontLoad returns only the chunk's offset and size, no payload.
	DontLoad
	// BlockSerializer reads the payload and in-place patches the
	// self-relative pointers it contains into absolute ones.
	BlockSerializer
)

// Request is one chunk a caller wants resolved out of an artifact
// collection.
type Request struct {
	Name            string
	Type            uint64
	ExpectedVersion uint32
	LoadMode        LoadMode
}

// Resolved is what ResolveRequests returns for one Request, in the same
// order the requests were given.
type Resolved struct {
	Name   string
	Offset uint32
	Size   uint32
	Data   []byte // nil when LoadMode was DontLoad on a chunk-file collection; raw collections always set it
}

// FixupFunc patches a BlockSerializer-loaded buffer's self-relative
// pointers into absolute ones, in place. Supplied by the caller, since the
// pointer layout is specific to each compiler's output format; this
// package only guarantees the buffer is handed to FixupFunc before being
// returned to ResolveRequests' caller.
type FixupFunc func(buf []byte) error

// ReleaseFunc is called exactly once, when the Collection is Closed, to
// drop the store's reader refcount for the hash this collection was
// opened against.
type ReleaseFunc func()

// Collection is the set of artifacts produced by one compile operation,
// bound to a stored chunk file (or, for side files and diagnostics, a
// single raw buffer with no chunk table of its own).
type Collection struct {
	path    string
	release ReleaseFunc

	raw    []byte // set when this collection wraps a single non-chunked buffer
	isRaw  bool
	closed bool
}

// Open validates that path is a well-formed chunk file (header + table
// parse cleanly) and returns a Collection ready for ResolveRequests, which
// reopens the file itself on each call so no handle outlives this
// constructor. release is called once on Close.
func Open(path string, release ReleaseFunc) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storeerr.NewFileNotFound(path)
		}
		return nil, storeerr.Wrap(storeerr.FileNotFound, "opening artifact bundle", path, err)
	}
	defer f.Close()

	if _, _, err := chunkfile.LoadTable(path, f); err != nil {
		return nil, err
	}

	return &Collection{path: path, release: release}, nil
}

// ResolveRequests opens the bundle fresh, resolves each request against its
// chunk table, and returns results in request order. The file is closed
// before returning; buffers outlive it.
func (c *Collection) ResolveRequests(requests []Request, fixup FixupFunc) ([]Resolved, error) {
	if c.isRaw {
		return c.resolveRaw(requests)
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.FileNotFound, "reopening artifact bundle", c.path, err)
	}
	defer f.Close()

	_, records, err := chunkfile.LoadTable(c.path, f)
	if err != nil {
		return nil, err
	}

	out := make([]Resolved, len(requests))
	for i, req := range requests {
		rec, err := chunkfile.FindChunk(c.path, records, req.Type, req.ExpectedVersion)
		if err != nil {
			return nil, err
		}

		res := Resolved{Name: req.Name, Offset: rec.FileOffset, Size: rec.Size}
		switch req.LoadMode {
		case DontLoad:
			// offset/size only
		case Raw:
			data, err := chunkfile.ReadChunk(f, rec)
			if err != nil {
				return nil, fmt.Errorf("read chunk %q: %w", req.Name, err)
			}
			res.Data = data
		case BlockSerializer:
			data, err := chunkfile.ReadChunk(f, rec)
			if err != nil {
				return nil, fmt.Errorf("read chunk %q: %w", req.Name, err)
			}
			if fixup != nil {
				if err := fixup(data); err != nil {
					return nil, fmt.Errorf("fixup chunk %q: %w", req.Name, err)
				}
			}
			res.Data = data
		}
		out[i] = res
	}
	return out, nil
}

func (c *Collection) resolveRaw(requests []Request) ([]Resolved, error) {
	out := make([]Resolved, len(requests))
	for i, req := range requests {
		out[i] = Resolved{Name: req.Name, Size: uint32(len(c.raw)), Data: c.raw}
	}
	return out, nil
}

// NewRaw wraps a single in-memory buffer (a side file or a diagnostic
// message) as a Collection with no chunk table to parse. ResolveRequests
// against it ignores Type/ExpectedVersion and always returns the whole
// buffer.
func NewRaw(data []byte, release ReleaseFunc) *Collection {
	return &Collection{raw: data, isRaw: true, release: release}
}

// OpenRaw reads path's whole contents eagerly and wraps them the same way
// NewRaw does. Used for side files (metrics, log) retrieved from a prior
// store entry, where there is no chunk table to defer parsing and the file
// is small enough that eager reads cost nothing.
func OpenRaw(path string, release ReleaseFunc) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storeerr.NewFileNotFound(path)
		}
		return nil, storeerr.Wrap(storeerr.FileNotFound, "reading side artifact", path, err)
	}
	return &Collection{raw: data, isRaw: true, release: release}, nil
}

// Close releases this collection's store reader refcount. Safe to call
// more than once; only the first call has effect.
func (c *Collection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.release != nil {
		c.release()
	}
	return nil
}
