package compiler

// NewInProcessLibrary builds a *Library directly from Go functions rather
// than loading a shared object. Used by registry and worker tests (and by
// cmd/forgectl's built-in passthrough compiler) to exercise the dispatch
// and worker paths without a real plugin binary on disk.
func NewInProcessLibrary(desc Desc, version VersionInfo, create func(identifier string) (Operation, error)) *Library {
	return &Library{
		Desc:            desc,
		Version:         version,
		createOperation: create,
	}
}
