package store

import (
	"hash/fnv"
	"strings"
)

// sanitizeRequestName replaces characters that can't appear in a path
// component on common filesystems (or that this pipeline reserves for
// sub-selectors) with '-'.
func sanitizeRequestName(request string) string {
	return strings.NewReplacer(":", "-", "*", "-").Replace(request)
}

// requestHash derives the content-fingerprint key used by the reader
// refcount table and the secondary index. It hashes the sanitized request
// name rather than the artifact bytes: two requests only ever collide here
// if they'd also collide on disk.
func requestHash(sanitizedRequest string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sanitizedRequest))
	return h.Sum64()
}
