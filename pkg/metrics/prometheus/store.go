// Package prometheus implements pkg/metrics's instrumentation interfaces
// against the Prometheus client, registered into pkg/metrics's constructor
// indirection at init time so core packages never import this package
// directly.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/assetforge/pkg/metrics"
)

func init() {
	metrics.RegisterStoreMetricsConstructor(func() metrics.StoreMetrics { return newStoreMetrics() })
}

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	retrieves   *prometheus.CounterVec
	commits     *prometheus.CounterVec
	readerCount *prometheus.GaugeVec
}

func newStoreMetrics() *storeMetrics {
	reg := metrics.GetRegistry()
	return &storeMetrics{
		retrieves: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_store_retrieves_total",
				Help: "Total RetrieveCompileProducts calls by outcome.",
			},
			[]string{"hit"},
		),
		commits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_store_commits_total",
				Help: "Total StoreCompileProducts calls by outcome.",
			},
			[]string{"ok"},
		),
		readerCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assetforge_store_reader_count",
				Help: "Current reader refcount per content hash.",
			},
			[]string{"hash"},
		),
	}
}

func (m *storeMetrics) IncRetrieve(hit bool) {
	m.retrieves.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (m *storeMetrics) IncCommit(ok bool) {
	m.commits.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (m *storeMetrics) SetReaderCount(hash uint64, n int32) {
	m.readerCount.WithLabelValues(strconv.FormatUint(hash, 16)).Set(float64(n))
}
