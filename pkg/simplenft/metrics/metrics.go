// Package metrics exposes Prometheus counters for the cache, the processor
// and the queue consumer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	"github.com/tendant/simple-nft/pkg/simplenft/queue"
	"github.com/tendant/simple-nft/pkg/simplenft/worker"
)

const namespace = "simplenft"

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	cachedHits      *prometheus.CounterVec
	pendingHits     *prometheus.CounterVec
	processed       *prometheus.CounterVec
	processDuration prometheus.Histogram
	settled         *prometheus.CounterVec
}

var (
	_ cache.Recorder  = (*Metrics)(nil)
	_ worker.Recorder = (*Metrics)(nil)
	_ queue.Recorder  = (*Metrics)(nil)
)

// New registers the collectors, plus the Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cachedHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Reads served from the cache, by key namespace.",
		}, []string{"namespace"}),
		pendingHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_hits_total",
			Help:      "Reads that joined an in-flight computation, by key namespace.",
		}, []string{"namespace"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nfts_processed_total",
			Help:      "Processing runs by final status.",
		}, []string{"status"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nft_process_duration_seconds",
			Help:      "Duration of processing runs that did work.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Settled queue messages by outcome and reason.",
		}, []string{"outcome", "reason"}),
	}
	m.registry.MustRegister(
		m.cachedHits,
		m.pendingHits,
		m.processed,
		m.processDuration,
		m.settled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CachedHit implements cache.Recorder
func (m *Metrics) CachedHit(ns string) {
	m.cachedHits.WithLabelValues(ns).Inc()
}

// PendingHit implements cache.Recorder
func (m *Metrics) PendingHit(ns string) {
	m.pendingHits.WithLabelValues(ns).Inc()
}

// Processed implements worker.Recorder
func (m *Metrics) Processed(status simplenft.ProcessStatus, err error, elapsed time.Duration) {
	label := string(status)
	if err != nil {
		label = "failed"
	}
	m.processed.WithLabelValues(label).Inc()
	if status != simplenft.ProcessStatusSkipped {
		m.processDuration.Observe(elapsed.Seconds())
	}
}

// Settled implements queue.Recorder
func (m *Metrics) Settled(outcome queue.Outcome, reason string) {
	m.settled.WithLabelValues(outcome.String(), reason).Inc()
}

// Registry returns the registry, for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
