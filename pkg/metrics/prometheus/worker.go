package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/assetforge/pkg/metrics"
)

func init() {
	metrics.RegisterWorkerMetricsConstructor(func() metrics.WorkerMetrics { return newWorkerMetrics() })
}

// workerMetrics is the Prometheus implementation of metrics.WorkerMetrics,
// and satisfies pkg/worker.Metrics structurally (same method set) without
// this package importing pkg/worker.
type workerMetrics struct {
	queueDepth      prometheus.Gauge
	compileDuration *prometheus.HistogramVec
	compileResults  *prometheus.CounterVec
}

func newWorkerMetrics() *workerMetrics {
	reg := metrics.GetRegistry()
	return &workerMetrics{
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "assetforge_worker_queue_depth",
				Help: "Number of compile jobs currently queued.",
			},
		),
		compileDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "assetforge_worker_compile_duration_seconds",
				Help: "Duration of a single compile job by file extension.",
				Buckets: []float64{
					0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300,
				},
			},
			[]string{"extension"},
		),
		compileResults: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_worker_compile_results_total",
				Help: "Total compile jobs by file extension and outcome.",
			},
			[]string{"extension", "ready"},
		),
	}
}

func (m *workerMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *workerMetrics) ObserveCompileDuration(extension string, d time.Duration) {
	m.compileDuration.WithLabelValues(extension).Observe(d.Seconds())
}

func (m *workerMetrics) IncCompileResult(extension string, ready bool) {
	status := "invalid"
	if ready {
		status = "ready"
	}
	m.compileResults.WithLabelValues(extension, status).Inc()
}
