package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the request cache does
type Metrics struct {
	lookups        *prometheus.CounterVec
	producerErrors prometheus.Counter
	persistErrors  prometheus.Counter
	entries        prometheus.Gauge
}

// NewMetrics registers the cache metrics on reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libdine_cache_lookups_total",
			Help: "Request cache lookups by result (hit or miss).",
		}, []string{"result"}),
		producerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "libdine_cache_producer_errors_total",
			Help: "Cache misses whose producer failed.",
		}),
		persistErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "libdine_cache_persist_errors_total",
			Help: "Failed writes of the durable cache.",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "libdine_cache_entries",
			Help: "Number of entries in the request cache.",
		}),
	}
}

func (m *Metrics) hit()  { m.lookups.WithLabelValues("hit").Inc() }
func (m *Metrics) miss() { m.lookups.WithLabelValues("miss").Inc() }
