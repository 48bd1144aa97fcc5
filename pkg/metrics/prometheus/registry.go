package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/assetforge/pkg/metrics"
)

func init() {
	metrics.RegisterRegistryMetricsConstructor(func() metrics.RegistryMetrics { return newRegistryMetrics() })
}

// registryMetrics is the Prometheus implementation of metrics.RegistryMetrics.
type registryMetrics struct {
	prepares *prometheus.CounterVec
}

func newRegistryMetrics() *registryMetrics {
	reg := metrics.GetRegistry()
	return &registryMetrics{
		prepares: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_registry_prepares_total",
				Help: "Total Prepare calls by file extension and whether they were served as a warm hit.",
			},
			[]string{"extension", "warm_hit"},
		),
	}
}

func (m *registryMetrics) IncPrepare(ext string, warmHit bool) {
	m.prepares.WithLabelValues(ext, strconv.FormatBool(warmHit)).Inc()
}
