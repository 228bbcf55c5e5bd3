// Package metrics exposes Prometheus instrumentation for the search
// engine: request counts, latency, per-backend failures, and cache
// effectiveness. A disabled collector is a no-op so callers never
// branch on configuration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genomicsearch/genomicsearch/internal/config"
)

// Collector records search engine metrics into its own registry.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	searchCounter   *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	resultsReturned prometheus.Histogram
	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
	cacheEntries    *prometheus.GaugeVec
}

// NewCollector builds a collector from configuration. When metrics are
// disabled every recording method is a no-op.
func NewCollector(cfg config.MetricsConfig) (*Collector, error) {
	if !cfg.Enabled {
		return &Collector{}, nil
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "genomicsearch"
	}

	c := &Collector{
		enabled:  true,
		registry: prometheus.NewRegistry(),

		searchCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "searches_total",
				Help:      "Total number of search requests",
			},
			[]string{"status"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "search_duration_seconds",
				Help:      "End-to-end search latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		resultsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "results_returned",
				Help:      "Results returned per search page",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
			},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "backend_list_duration_seconds",
				Help:      "Per-backend listing latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"backend"},
		),
		backendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "backend_errors_total",
				Help:      "Backend failures by engine and error code",
			},
			[]string{"backend", "code"},
		),
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by cache name and outcome",
			},
			[]string{"cache", "outcome"},
		),
		cacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "cache_entries",
				Help:      "Current entry count per cache",
			},
			[]string{"cache"},
		),
	}

	collectors := []prometheus.Collector{
		c.searchCounter,
		c.searchDuration,
		c.resultsReturned,
		c.backendDuration,
		c.backendErrors,
		c.cacheRequests,
		c.cacheEntries,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler serves the collector's registry in Prometheus exposition
// format. Returns a 404 handler when metrics are disabled.
func (c *Collector) Handler() http.Handler {
	if c == nil || !c.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSearch records one completed search request.
func (c *Collector) RecordSearch(duration time.Duration, returned int, err error) {
	if c == nil || !c.enabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.searchCounter.WithLabelValues(status).Inc()
	c.searchDuration.Observe(duration.Seconds())
	if err == nil {
		c.resultsReturned.Observe(float64(returned))
	}
}

// RecordBackendList records one backend listing attempt.
func (c *Collector) RecordBackendList(backend string, duration time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.backendDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordBackendError counts a backend failure by error code.
func (c *Collector) RecordBackendError(backend, code string) {
	if c == nil || !c.enabled {
		return
	}
	c.backendErrors.WithLabelValues(backend, code).Inc()
}

// RecordCacheHit counts a cache hit for the named cache.
func (c *Collector) RecordCacheHit(cache string) {
	if c == nil || !c.enabled {
		return
	}
	c.cacheRequests.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss counts a cache miss for the named cache.
func (c *Collector) RecordCacheMiss(cache string) {
	if c == nil || !c.enabled {
		return
	}
	c.cacheRequests.WithLabelValues(cache, "miss").Inc()
}

// UpdateCacheEntries sets the current entry count for the named cache.
func (c *Collector) UpdateCacheEntries(cache string, entries int) {
	if c == nil || !c.enabled {
		return
	}
	c.cacheEntries.WithLabelValues(cache).Set(float64(entries))
}
