// Package marker implements the compile marker (future) callers receive
// from a Prepare call: a handle that starts Pending and transitions exactly
// once, to either Ready or Invalid, as the background worker finishes the
// compile it describes.
package marker

import (
	"sync"

	"github.com/marmos91/assetforge/pkg/artifact"
	"github.com/marmos91/assetforge/pkg/depval"
)

// State is a marker's terminal-or-pending lifecycle state.
type State int

const (
	// Pending means the compile has not finished yet.
	Pending State = iota
	// Ready means the compile finished successfully; artifacts are readable.
	Ready
	// Invalid means the compile failed; a diagnostic artifact is available.
	Invalid
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Locator identifies where a Ready marker's primary artifact lives and the
// validation record guarding its freshness.
type Locator struct {
	Path       string
	Hash       uint64
	Validation *depval.Validation
}

// Marker is the future a caller holds while a compile is in flight. Its
// state only ever moves Pending -> Ready or Pending -> Invalid, never back;
// once a terminal state is observed, Locator/Artifacts never change again.
type Marker struct {
	initializer string

	mu       sync.Mutex
	state    State
	locator  Locator
	artifact map[string]*artifact.Collection
	done     chan struct{}

	// anchor holds a strong reference to whatever the worker's queue keeps
	// only a weak.Pointer to (a *worker.Job). Wiring it back here, rather
	// than leaving it stack-local to Prepare, is what makes "caller drops
	// its marker before the job is picked up" collect the job too: nothing
	// else in the program holds it strongly.
	anchor any
}

// New creates a Pending marker for the given request initializer (the
// request name, including any colon-parameters).
func New(initializer string) *Marker {
	return &Marker{
		initializer: initializer,
		artifact:    make(map[string]*artifact.Collection),
		done:        make(chan struct{}),
	}
}

// Initializer returns the request initializer this marker was created for.
func (m *Marker) Initializer() string {
	return m.initializer
}

// Anchor stores v as this marker's keep-alive reference. The worker package
// calls this once, from Push, so the queued job stays reachable for exactly
// as long as some caller holds this marker.
func (m *Marker) Anchor(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchor = v
}

// TryResolve returns the marker's current state without blocking.
func (m *Marker) TryResolve() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StallWhilePending blocks until the marker reaches a terminal state, then
// returns it.
func (m *Marker) StallWhilePending() State {
	<-m.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done returns a channel closed when the marker transitions to a terminal
// state, for callers that want to select on multiple markers at once.
func (m *Marker) Done() <-chan struct{} {
	return m.done
}

// GetLocator returns the marker's locator. Valid only once the marker is
// Ready; returns the zero Locator otherwise.
func (m *Marker) GetLocator() Locator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locator
}

// GetArtifact returns the named artifact collection attached to this
// marker ("main", "metrics", "log", "diagnostic"), or nil if none was
// attached under that name.
func (m *Marker) GetArtifact(name string) *artifact.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact[name]
}

// ResolveReady transitions the marker to Ready, attaching its locator and
// named artifacts. Panics if called on a marker that has already reached a
// terminal state, since the worker is the only writer and must never
// resolve the same marker twice.
func (m *Marker) ResolveReady(locator Locator, artifacts map[string]*artifact.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Pending {
		panic("marker: ResolveReady called on a non-pending marker")
	}
	m.locator = locator
	m.artifact = artifacts
	m.state = Ready
	close(m.done)
}

// ResolveInvalid transitions the marker to Invalid, attaching a diagnostic
// artifact carrying the failure message under the "diagnostic" name.
func (m *Marker) ResolveInvalid(diagnostic *artifact.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Pending {
		panic("marker: ResolveInvalid called on a non-pending marker")
	}
	if diagnostic != nil {
		m.artifact["diagnostic"] = diagnostic
	}
	m.state = Invalid
	close(m.done)
}
