// Package storeerr defines the error taxonomy shared by every stage of the
// compile pipeline: the chunk codec, the dependency validator, the store,
// the compiler registry, and the worker.
//
// These are domain errors (a file is missing, a chunk version doesn't match)
// as opposed to infrastructure errors (disk full, permission denied), which
// are wrapped and surfaced unchanged via %w. Callers distinguish kinds with
// errors.Is/errors.As, never by matching message text.
package storeerr

import "fmt"

// Kind is the category of a pipeline error. Kinds are what callers branch
// on; Error.Message is for humans.
type Kind int

const (
	// FileNotFound indicates a requested file is absent. Often non-fatal:
	// the store treats it as "no cached result" and triggers a rebuild.
	FileNotFound Kind = iota

	// FormatError indicates a file's bytes could not be parsed. Returned to
	// the caller unchanged; any cached artifact is treated as invalid.
	FormatError

	// UnsupportedVersion indicates a chunk or manifest version mismatch.
	// Triggers an automatic rebuild; never surfaced to the end user.
	UnsupportedVersion

	// MissingChunk indicates a chunk of expected type is absent from a
	// bundle. Surfaces as an Invalid marker state.
	MissingChunk

	// NoCompiler indicates no registered library handles the requested
	// file extension. Fails the Prepare call synchronously.
	NoCompiler

	// CompilerFailure indicates a compiler library failed during
	// compilation. The worker catches it, sets the marker Invalid, and
	// records the request in the invalid-assets sidecar list.
	CompilerFailure

	// AssetDependencyError indicates registering a dependency would create
	// a cycle in the dependency graph. Synchronous failure at the point of
	// RegisterAssetDependency.
	AssetDependencyError
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case FormatError:
		return "FormatError"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case MissingChunk:
		return "MissingChunk"
	case NoCompiler:
		return "NoCompiler"
	case CompilerFailure:
		return "CompilerFailure"
	case AssetDependencyError:
		return "AssetDependencyError"
	default:
		return "Unknown"
	}
}

// Recoverable reports whether errors of this kind are caught at the store
// boundary and converted into "no cached result" rather than propagated as
// a terminal Invalid marker state.
func (k Kind) Recoverable() bool {
	switch k {
	case FileNotFound, UnsupportedVersion:
		return true
	default:
		return false
	}
}

// Error is a typed pipeline error carrying a Kind, a human-readable message,
// and the path it concerns, if any.
type Error struct {
	Kind    Kind
	Message string
	Path    string

	// Wrapped is the underlying infrastructure error, if this Error was
	// constructed by wrapping one (e.g. an *os.PathError).
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the infrastructure
// error this Error wraps, if any.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, storeerr.New(storeerr.FileNotFound, "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, message, path string) *Error {
	return &Error{Kind: kind, Message: message, Path: path}
}

// Wrap constructs an *Error of the given kind, wrapping an underlying
// infrastructure error for %w-based inspection.
func Wrap(kind Kind, message, path string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Path: path, Wrapped: cause}
}

// NewFileNotFound creates an *Error for a missing file.
func NewFileNotFound(path string) *Error {
	return &Error{Kind: FileNotFound, Message: "file not found", Path: path}
}

// NewFormatError creates an *Error for bytes that failed to parse.
func NewFormatError(path, reason string) *Error {
	return &Error{Kind: FormatError, Message: reason, Path: path}
}

// NewUnsupportedVersion creates an *Error for a chunk or manifest version
// mismatch. got/want are formatted into the message for diagnostics.
func NewUnsupportedVersion(path string, got, want uint32) *Error {
	return &Error{
		Kind:    UnsupportedVersion,
		Message: fmt.Sprintf("unsupported version %d (expected %d)", got, want),
		Path:    path,
	}
}

// NewMissingChunk creates an *Error for a chunk of expected type absent
// from a bundle.
func NewMissingChunk(path string, typeID uint64) *Error {
	return &Error{
		Kind:    MissingChunk,
		Message: fmt.Sprintf("missing chunk type 0x%x", typeID),
		Path:    path,
	}
}

// NewNoCompiler creates an *Error for a request whose extension no
// registered compiler library handles.
func NewNoCompiler(extension string) *Error {
	return &Error{
		Kind:    NoCompiler,
		Message: "no compiler registered for extension",
		Path:    extension,
	}
}

// NewCompilerFailure creates an *Error for a compiler library failure
// during compilation.
func NewCompilerFailure(requestName, reason string) *Error {
	return &Error{Kind: CompilerFailure, Message: reason, Path: requestName}
}

// NewAssetDependencyError creates an *Error for a dependency registration
// that would introduce a cycle.
func NewAssetDependencyError(path string) *Error {
	return &Error{
		Kind:    AssetDependencyError,
		Message: "registering this dependency would create a cycle",
		Path:    path,
	}
}
