// Package worker runs the single background goroutine that drains queued
// compile jobs in strict FIFO order, invokes the target compiler, packs its
// output through pkg/chunkfile, commits it through pkg/store, and resolves
// the job's marker. Exactly one compile runs at a time.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"weak"

	"github.com/marmos91/assetforge/internal/logger"
	"github.com/marmos91/assetforge/pkg/artifact"
	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/depval"
	"github.com/marmos91/assetforge/pkg/marker"
	"github.com/marmos91/assetforge/pkg/storeerr"
	"github.com/marmos91/assetforge/pkg/store"
)

// Metrics is the optional instrumentation hook a Worker reports into. A nil
// Metrics (the default) costs nothing; pkg/metrics/prometheus supplies a
// real implementation.
type Metrics interface {
	SetQueueDepth(n int)
	ObserveCompileDuration(extension string, d time.Duration)
	IncCompileResult(extension string, ready bool)
}

// Worker owns the compile queue and the single goroutine draining it.
type Worker struct {
	queue chan weak.Pointer[Job]

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	pending sync.WaitGroup
	metrics Metrics

	depthMu sync.Mutex
	depth   int
}

// Option configures a Worker at construction.
type Option func(*Worker)

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// New creates a Worker with the given bounded queue capacity and starts its
// background goroutine. Call StallOnPendingOperations(true) to shut it
// down.
func New(capacity int, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		queue:  make(chan weak.Pointer[Job], capacity),
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// Push enqueues job for the background goroutine. It anchors job onto its
// own Marker so the pair is kept alive exactly as long as some caller holds
// that marker, and the queue itself never prevents collection: the queue
// holds only a weak.Pointer. Push never blocks; a full queue is reported as
// an error immediately rather than applying backpressure to the caller.
func (w *Worker) Push(job *Job) error {
	job.Marker.Anchor(job)
	w.pending.Add(1)

	select {
	case w.queue <- weak.Make(job):
		w.reportDepth(1)
		return nil
	default:
		w.pending.Done()
		return fmt.Errorf("worker: queue at capacity (%d)", cap(w.queue))
	}
}

// StallOnPendingOperations blocks until every job pushed so far has either
// been processed or, if cancel is true, until the worker has stopped taking
// new work and drained in flight. With cancel=false it simply waits for the
// queue to empty, for callers (and tests) that want to synchronize on "no
// compiles remain in flight" without shutting the worker down.
func (w *Worker) StallOnPendingOperations(cancel bool) {
	if cancel {
		w.cancel()
		<-w.doneCh
		return
	}
	w.pending.Wait()
}

func (w *Worker) reportDepth(delta int) {
	w.depthMu.Lock()
	w.depth += delta
	depth := w.depth
	w.depthMu.Unlock()
	if w.metrics != nil {
		w.metrics.SetQueueDepth(depth)
	}
}

func (w *Worker) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.ctx.Done():
			return
		case wp, ok := <-w.queue:
			if !ok {
				return
			}
			w.reportDepth(-1)
			w.process(wp)
		}
	}
}

func (w *Worker) process(wp weak.Pointer[Job]) {
	defer w.pending.Done()

	job := wp.Value()
	if job == nil {
		logger.Debug("dropped queued compile job", logger.Dropped(true))
		return
	}

	logger.Debug("starting compile job",
		logger.OperationID(job.OperationID), logger.RequestName(job.Initializer))

	w.compile(job)
}

// compile runs one job to completion. Nothing it calls is allowed to panic
// past this frame: a panic from a misbehaving in-process compiler is caught
// here and turned into the same Invalid-marker outcome as a returned error,
// per the "exceptions never propagate out of the worker" invariant.
func (w *Worker) compile(job *Job) {
	start := time.Now()
	ext := filepath.Ext(strippedInitializer(job.Initializer))

	defer func() {
		if r := recover(); r != nil {
			w.fail(job, ext, fmt.Errorf("panic in compiler %s: %v", job.Library.Desc.Name, r))
		}
	}()

	op, err := job.Library.CreateCompileOperation(job.Initializer)
	if err != nil {
		w.fail(job, ext, err)
		return
	}

	var products []store.Product
	for i := 0; i < op.TargetCount(); i++ {
		target := op.GetTarget(i)
		chunks, err := op.SerializeTarget(i)
		if err != nil {
			w.fail(job, ext, fmt.Errorf("serialize target %q: %w", target.Name, err))
			return
		}
		for _, c := range chunks {
			products = append(products, store.Product{TypeID: c.TypeID, Version: c.Version, Name: c.Name, Data: c.Data})
		}
	}

	deps := op.Dependencies()
	fileStates := make([]depval.FileState, 0, len(deps))
	for _, d := range deps {
		fileStates = append(fileStates, depval.GetDependentFileState(d))
	}

	if err := job.Store.StoreCompileProducts(job.Initializer, products, false, fileStates, job.Library.Version.VersionString, job.Library.Version.BuildDate); err != nil {
		w.fail(job, ext, err)
		return
	}

	w.succeed(job, ext)
	if w.metrics != nil {
		w.metrics.ObserveCompileDuration(ext, time.Since(start))
	}
}

// succeed re-retrieves the entry StoreCompileProducts just committed (rather
// than reusing in-flight buffers) so the marker's artifact collections are
// sourced the same way a warm-hit retrieval would build them, and the
// result carries a real refcount the caller's Collection.Close releases.
func (w *Worker) succeed(job *Job, ext string) {
	result, ok, err := job.Store.RetrieveCompileProducts(job.Initializer)
	if err != nil || !ok {
		w.fail(job, ext, fmt.Errorf("commit succeeded but retrieval failed: %w", err))
		return
	}

	artifacts, err := buildArtifacts(job.Store, result)
	if err != nil {
		job.Store.Release(result.Hash)
		w.fail(job, ext, err)
		return
	}

	job.Marker.ResolveReady(marker.Locator{
		Path:       result.BasePath,
		Hash:       result.Hash,
		Validation: result.Validation,
	}, artifacts)

	logger.Debug("compile succeeded",
		logger.OperationID(job.OperationID), logger.RequestName(job.Initializer))

	if w.metrics != nil {
		w.metrics.IncCompileResult(ext, true)
	}
}

// buildArtifacts opens one Collection for the main bundle (if this request
// produced one) plus one per side file, wiring the store's reader refcount
// release to the main bundle's collection only — see the release closure
// below. Without a main bundle the refcount is released immediately.
func buildArtifacts(s *store.Store, result store.RetrieveResult) (map[string]*artifact.Collection, error) {
	dir := filepath.Dir(result.BasePath)
	artifacts := make(map[string]*artifact.Collection)

	var mainPath string
	for _, p := range result.Products {
		switch p.TypeID {
		case chunkfile.TypeMetrics:
			col, err := artifact.OpenRaw(filepath.Join(dir, p.ArtifactPath), nil)
			if err != nil {
				return nil, err
			}
			artifacts["metrics"] = col
		case chunkfile.TypeLog:
			col, err := artifact.OpenRaw(filepath.Join(dir, p.ArtifactPath), nil)
			if err != nil {
				return nil, err
			}
			artifacts["log"] = col
		default:
			mainPath = filepath.Join(dir, p.ArtifactPath)
		}
	}

	if mainPath == "" {
		// No main bundle was produced; nothing holds the store's reader
		// refcount open on the caller's behalf, so release it now.
		s.Release(result.Hash)
		return artifacts, nil
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		s.Release(result.Hash)
	}
	col, err := artifact.Open(mainPath, release)
	if err != nil {
		return nil, err
	}
	artifacts["main"] = col
	return artifacts, nil
}

func (w *Worker) fail(job *Job, ext string, cause error) {
	reason := cause.Error()
	logger.Error("compile failed",
		logger.OperationID(job.OperationID), logger.RequestName(job.Initializer), logger.Err(cause))

	if err := job.Store.StoreCompileProducts(job.Initializer, nil, true, nil, "", ""); err != nil {
		logger.Warn("failed to record invalid asset",
			logger.OperationID(job.OperationID), logger.RequestName(job.Initializer), logger.Err(err))
	}

	diagnostic := artifact.NewRaw([]byte(storeerr.NewCompilerFailure(job.Initializer, reason).Error()), nil)
	job.Marker.ResolveInvalid(diagnostic)

	if w.metrics != nil {
		w.metrics.IncCompileResult(ext, false)
	}
}

// strippedInitializer drops any trailing ":parameters" selector so
// filepath.Ext sees the real file extension.
func strippedInitializer(initializer string) string {
	if i := strings.IndexByte(initializer, ':'); i >= 0 {
		return initializer[:i]
	}
	return initializer
}
