// Package passthrough implements a minimal built-in compiler: it reads a
// request's named file whole and emits it as a single chunk, with no real
// transformation. forgectl registers it so `compile` and `compiler list`
// work out of the box, before any real compiler shared libraries have been
// built and dropped into the search directories.
package passthrough

import (
	"os"
	"strings"

	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/compiler"
)

// Extension is the file extension this compiler claims.
const Extension = ".raw"

// Library returns the attached form of the passthrough compiler.
func Library() *compiler.Library {
	return compiler.NewInProcessLibrary(
		compiler.Desc{
			Name:  "passthrough",
			Kinds: []compiler.FileKind{{Extension: Extension}},
		},
		compiler.VersionInfo{VersionString: "builtin", BuildDate: "n/a"},
		createOperation,
	)
}

func createOperation(identifier string) (compiler.Operation, error) {
	return &operation{identifier: identifier}, nil
}

// operation reads identifier's file lazily, each time SerializeTarget is
// called; nothing is cached between calls.
type operation struct {
	identifier string
}

func (o *operation) TargetCount() int { return 1 }

func (o *operation) GetTarget(idx int) compiler.Target {
	return compiler.Target{TypeID: chunkfile.TypeMulti, Name: "raw"}
}

func (o *operation) SerializeTarget(idx int) ([]compiler.Chunk, error) {
	data, err := os.ReadFile(sourcePath(o.identifier))
	if err != nil {
		return nil, err
	}
	return []compiler.Chunk{{TypeID: chunkfile.TypeMulti, Version: 1, Name: "raw", Data: data}}, nil
}

func (o *operation) Dependencies() []string {
	return []string{sourcePath(o.identifier)}
}

// sourcePath strips any trailing ":parameters" selector from a request
// initializer to recover the underlying file path.
func sourcePath(identifier string) string {
	if i := strings.IndexByte(identifier, ':'); i >= 0 {
		return identifier[:i]
	}
	return identifier
}
