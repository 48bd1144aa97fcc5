package worker

import (
	"github.com/marmos91/assetforge/pkg/compiler"
	"github.com/marmos91/assetforge/pkg/marker"
	"github.com/marmos91/assetforge/pkg/store"
)

// Job is the queued compile operation (§3 "Queued compile operation"): the
// type code and initializer a compiler needs, the library and store to run
// it against, and the marker to resolve once it's done.
//
// A Job is only ever strongly reachable through the Marker it resolves —
// see Push, which anchors the Job onto its Marker so the two are collected
// together once a caller drops its last reference to the marker. The
// worker's queue itself only ever holds a weak.Pointer to a Job.
type Job struct {
	TypeCode    uint64
	Initializer string
	Library     *compiler.Library
	Store       *store.Store
	Marker      *marker.Marker

	// OperationID is the uuid the registry's Prepare call generated for
	// this request, carried through so every log line the worker emits
	// about this compile can be grepped by the same id Prepare logged.
	OperationID string
}
