package polymarket

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the toolkit's Prometheus collectors.
type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheTotal    *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// NewMetrics registers the collectors with reg. Collectors already registered
// there are reused, so every toolkit sharing a registerer shares its metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roma",
			Subsystem: "toolkit",
			Name:      "fetch_total",
			Help:      "Upstream fetches by client and outcome.",
		}, []string{"client", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roma",
			Subsystem: "toolkit",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency by client.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roma",
			Subsystem: "toolkit",
			Name:      "cache_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
	}

	m.fetchTotal = register(reg, m.fetchTotal)
	m.fetchDuration = register(reg, m.fetchDuration)
	m.cacheTotal = register(reg, m.cacheTotal)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeFetch(client, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(client, status).Inc()
	m.fetchDuration.WithLabelValues(client).Observe(d.Seconds())
}

func (m *Metrics) cacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}
