// Package metrics defines the instrumentation surface the compile pipeline
// reports into, decoupled from any concrete backend: producer packages
// (pkg/store, pkg/worker, pkg/registry) depend only on these interfaces,
// never on Prometheus directly, so metrics stay zero-cost when disabled and
// swappable in tests. pkg/metrics/prometheus supplies the real
// implementation and registers it here at init time, mirroring the
// teacher's cache/s3/nfs metrics indirection.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry every metrics
// implementation registers its collectors into. Call once at startup,
// before constructing any Store/Worker/Registry that should report metrics;
// IsEnabled is false until this has run.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// StoreMetrics is the instrumentation surface pkg/store reports into.
type StoreMetrics interface {
	// IncRetrieve records one RetrieveCompileProducts call, hit=true when it
	// returned a usable cached entry.
	IncRetrieve(hit bool)
	// IncCommit records one StoreCompileProducts call, ok=true when it
	// committed successfully.
	IncCommit(ok bool)
	// SetReaderCount reports the current reader refcount for a content hash.
	SetReaderCount(hash uint64, n int32)
}

// WorkerMetrics is the instrumentation surface pkg/worker reports into.
// Structurally identical to worker.Metrics; kept as a separate declaration
// so pkg/metrics/prometheus need not import pkg/worker to satisfy it.
type WorkerMetrics interface {
	SetQueueDepth(n int)
	ObserveCompileDuration(extension string, d time.Duration)
	IncCompileResult(extension string, ready bool)
}

// RegistryMetrics is the instrumentation surface pkg/registry reports into.
type RegistryMetrics interface {
	// IncPrepare records one Prepare call for ext, warmHit=true when it was
	// served from the store without touching the worker queue.
	IncPrepare(ext string, warmHit bool)
}

// storeCtor/workerCtor/registryCtor are populated by pkg/metrics/prometheus'
// init() functions, the same registration-indirection pattern the teacher
// uses for NewCacheMetrics/NewS3Metrics to avoid a metrics -> prometheus ->
// metrics import cycle.
var (
	storeCtor    func() StoreMetrics
	workerCtor   func() WorkerMetrics
	registryCtor func() RegistryMetrics
)

// RegisterStoreMetricsConstructor is called by pkg/metrics/prometheus at
// init time.
func RegisterStoreMetricsConstructor(ctor func() StoreMetrics) { storeCtor = ctor }

// RegisterWorkerMetricsConstructor is called by pkg/metrics/prometheus at
// init time.
func RegisterWorkerMetricsConstructor(ctor func() WorkerMetrics) { workerCtor = ctor }

// RegisterRegistryMetricsConstructor is called by pkg/metrics/prometheus at
// init time.
func RegisterRegistryMetricsConstructor(ctor func() RegistryMetrics) { registryCtor = ctor }

// NewStoreMetrics returns nil (zero overhead) unless both InitRegistry has
// run and pkg/metrics/prometheus has been imported for its init side
// effect.
func NewStoreMetrics() StoreMetrics {
	if !IsEnabled() || storeCtor == nil {
		return nil
	}
	return storeCtor()
}

// NewWorkerMetrics returns nil unless metrics are enabled and wired.
func NewWorkerMetrics() WorkerMetrics {
	if !IsEnabled() || workerCtor == nil {
		return nil
	}
	return workerCtor()
}

// NewRegistryMetrics returns nil unless metrics are enabled and wired.
func NewRegistryMetrics() RegistryMetrics {
	if !IsEnabled() || registryCtor == nil {
		return nil
	}
	return registryCtor()
}
