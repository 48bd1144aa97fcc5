// Package compiler defines the contract every external compiler shared
// library must implement, and loads libraries matching that contract off
// disk via the standard library's plugin loader.
package compiler

import "fmt"

// FileKind describes one file extension a compiler handles, plus a
// type-mask further narrowing which sub-selectors (the part of a request
// name after ':') that extension accepts.
type FileKind struct {
	Extension string
	TypeMask  uint64
}

// Desc is a compiler library's static self-description, returned once at
// load time and cached by the registry.
type Desc struct {
	Name  string
	Kinds []FileKind
}

// VersionInfo is a compiler library's build identification, stamped into
// every chunk file it produces.
type VersionInfo struct {
	VersionString string
	BuildDate     string
}

// Target is one output a CompileOperation can serialize: its chunk type
// code and logical name.
type Target struct {
	TypeID uint64
	Name   string
}

// Chunk is one piece of serialized output from a single target: the chunk
// type/version/name to stamp it with, and its raw payload.
type Chunk struct {
	TypeID  uint64
	Version uint32
	Name    string
	Data    []byte
}

// Operation is a single compile request in progress against one library.
// The registry/worker enumerate its targets and serialize each.
type Operation interface {
	// TargetCount returns how many distinct outputs this operation
	// produces.
	TargetCount() int
	// GetTarget describes output idx.
	GetTarget(idx int) Target
	// SerializeTarget produces output idx's chunks. May be called once per
	// target; a compiler that needs to reuse intermediate state across
	// targets should compute it lazily on first SerializeTarget call.
	SerializeTarget(idx int) ([]Chunk, error)
	// Dependencies lists every source file this operation read, for the
	// store's manifest.
	Dependencies() []string
}

// Library is the attached form of a compiler shared library: its
// description plus the entry points the loader resolved.
type Library struct {
	Desc    Desc
	Version VersionInfo

	createOperation func(identifier string) (Operation, error)
	detach          func()
}

// CreateCompileOperation starts a new compile against this library for the
// given request identifier (the request name, including any
// colon-parameters).
func (l *Library) CreateCompileOperation(identifier string) (Operation, error) {
	if l.createOperation == nil {
		return nil, fmt.Errorf("compiler %s: CreateCompileOperation not resolved", l.Desc.Name)
	}
	return l.createOperation(identifier)
}

// Detach calls the library's DetachLibrary entry point, releasing any
// cross-library services it attached to.
func (l *Library) Detach() {
	if l.detach != nil {
		l.detach()
	}
}

// SupportsExtension reports whether this library declared a FileKind for
// ext (case-sensitive, including the leading '.').
func (l *Library) SupportsExtension(ext string) bool {
	for _, k := range l.Desc.Kinds {
		if k.Extension == ext {
			return true
		}
	}
	return false
}
