package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Every method is
// safe on a nil Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Turn metrics
	Turns         *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	// Provider metrics
	ProviderErrors *prometheus.CounterVec
	BreakerOpen    *prometheus.GaugeVec

	// Graph metrics
	GraphMerges  prometheus.Counter
	GraphAborted prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Conversation turns by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_stage_duration_seconds",
				Help:      "Time spent reaching each turn stage",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Failed calls to external providers",
			},
			[]string{"provider"},
		),
		BreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_breaker_open",
				Help:      "1 while a provider circuit breaker is not closed",
			},
			[]string{"provider"},
		),
		GraphMerges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_relationships_merged_total",
				Help:      "Relationships merged into the topic graph",
			},
		),
		GraphAborted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_upserts_aborted_total",
				Help:      "Graph upserts aborted by a store error",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Turns,
		c.StageDuration,
		c.ProviderErrors,
		c.BreakerOpen,
		c.GraphMerges,
		c.GraphAborted,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordTurn(mode, outcome string) {
	if c == nil {
		return
	}
	c.Turns.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) ObserveStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (c *Collector) RecordProviderError(provider string) {
	if c == nil {
		return
	}
	c.ProviderErrors.WithLabelValues(provider).Inc()
}

// SetBreakerState matches the resilience state-change callback signature
func (c *Collector) SetBreakerState(provider, state string) {
	if c == nil {
		return
	}
	value := 0.0
	if state != "closed" {
		value = 1
	}
	c.BreakerOpen.WithLabelValues(provider).Set(value)
}

func (c *Collector) RecordGraphMerges(n int) {
	if c == nil {
		return
	}
	c.GraphMerges.Add(float64(n))
}

func (c *Collector) RecordGraphAborted() {
	if c == nil {
		return
	}
	c.GraphAborted.Inc()
}

func (c *Collector) RecordCacheHit() {
	if c == nil {
		return
	}
	c.CacheHits.Inc()
}

func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.CacheMisses.Inc()
}
