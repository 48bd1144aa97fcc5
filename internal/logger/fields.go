package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the compile pipeline.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation id for an end-to-end compile
	KeySpanID  = "span_id"  // id of the current step within that compile

	// ========================================================================
	// Compile Request
	// ========================================================================
	KeyRequestName  = "request_name"  // asset request name being compiled
	KeyCompilerName = "compiler_name" // name of the compiler handling the request
	KeyTargetStore  = "target_store"  // branch identifier (engine version + configuration)
	KeyOperationID  = "operation_id"  // uuid of the queued compile operation
	KeyTypeCode     = "type_code"     // compiler-defined asset type code

	// ========================================================================
	// Chunk File
	// ========================================================================
	KeyChunkPath    = "chunk_path"    // path to a .chunk file on disk
	KeyChunkType    = "chunk_type"    // chunk type id within a chunk file
	KeyChunkName    = "chunk_name"    // human-readable chunk name
	KeyChunkVersion = "chunk_version" // chunk format version
	KeyChunkCount   = "chunk_count"   // number of chunks in a file

	// ========================================================================
	// Dependency Validation
	// ========================================================================
	KeyDependencyPath = "dependency_path" // path of a tracked dependent file
	KeyValidationIdx  = "validation_index"
	KeyInvalidated    = "invalidated" // whether OnChange fired for this path

	// ========================================================================
	// Store
	// ========================================================================
	KeyStoreBranch = "store_branch" // engine-version/configuration branch directory
	KeyStoreRoot   = "store_root"   // root directory of the intermediate store
	KeyArtifactID  = "artifact_id"  // content hash / identity of a stored artifact

	// ========================================================================
	// Worker
	// ========================================================================
	KeyQueueDepth = "queue_depth" // number of operations currently queued
	KeyDropped    = "dropped"     // whether a queued job was dropped (weak ref expired)

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorKind  = "error_kind"  // one of the seven store error kinds
	KeyAttempt    = "attempt"     // retry attempt number
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for the compile correlation id
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for the current compile step id
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestName returns a slog.Attr for the asset request name
func RequestName(name string) slog.Attr {
	return slog.String(KeyRequestName, name)
}

// CompilerName returns a slog.Attr for the compiler name
func CompilerName(name string) slog.Attr {
	return slog.String(KeyCompilerName, name)
}

// TargetStore returns a slog.Attr for the destination store branch
func TargetStore(branch string) slog.Attr {
	return slog.String(KeyTargetStore, branch)
}

// OperationID returns a slog.Attr for a queued compile operation's uuid
func OperationID(id string) slog.Attr {
	return slog.String(KeyOperationID, id)
}

// TypeCode returns a slog.Attr for a compiler-defined asset type code
func TypeCode(code uint64) slog.Attr {
	return slog.Uint64(KeyTypeCode, code)
}

// ChunkPath returns a slog.Attr for a chunk file path
func ChunkPath(p string) slog.Attr {
	return slog.String(KeyChunkPath, p)
}

// ChunkType returns a slog.Attr for a chunk's type id
func ChunkType(id uint64) slog.Attr {
	return slog.Uint64(KeyChunkType, id)
}

// ChunkName returns a slog.Attr for a chunk's human-readable name
func ChunkName(name string) slog.Attr {
	return slog.String(KeyChunkName, name)
}

// ChunkVersion returns a slog.Attr for a chunk's format version
func ChunkVersion(v uint32) slog.Attr {
	return slog.Uint64(KeyChunkVersion, uint64(v))
}

// ChunkCount returns a slog.Attr for the number of chunks in a file
func ChunkCount(n int) slog.Attr {
	return slog.Int(KeyChunkCount, n)
}

// DependencyPath returns a slog.Attr for a tracked dependent file's path
func DependencyPath(p string) slog.Attr {
	return slog.String(KeyDependencyPath, p)
}

// ValidationIndex returns a slog.Attr for a dependency validation index
func ValidationIndex(idx uint32) slog.Attr {
	return slog.Uint64(KeyValidationIdx, uint64(idx))
}

// Invalidated returns a slog.Attr for an invalidation flag
func Invalidated(v bool) slog.Attr {
	return slog.Bool(KeyInvalidated, v)
}

// StoreBranch returns a slog.Attr for the store's branch directory
func StoreBranch(branch string) slog.Attr {
	return slog.String(KeyStoreBranch, branch)
}

// StoreRoot returns a slog.Attr for the store's root directory
func StoreRoot(root string) slog.Attr {
	return slog.String(KeyStoreRoot, root)
}

// ArtifactID returns a slog.Attr for a stored artifact's identity
func ArtifactID(id string) slog.Attr {
	return slog.String(KeyArtifactID, id)
}

// QueueDepth returns a slog.Attr for the worker's current queue depth
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// Dropped returns a slog.Attr for whether a queued job was dropped
func Dropped(v bool) slog.Attr {
	return slog.Bool(KeyDropped, v)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for one of the store error kinds
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
