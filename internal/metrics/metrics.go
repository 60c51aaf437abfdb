// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation kinds.
const (
	KindGenerate = "generate"
	KindWormhole = "wormhole"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	HypergraphsCreated prometheus.Counter
	HyperedgesAdded    prometheus.Counter
	HyperedgesRemoved  prometheus.Counter

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ActiveStreams      prometheus.Gauge
}

// NewCollector creates and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HypergraphsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hypergraphs_created_total",
			Help:      "Total number of hypergraphs created",
		}),
		HyperedgesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hyperedges_added_total",
			Help:      "Total number of hyperedges saved",
		}),
		HyperedgesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hyperedges_removed_total",
			Help:      "Total number of hyperedges removed",
		}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation streams by kind and outcome",
		}, []string{"kind", "outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation stream duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Generation streams currently in flight",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.HypergraphsCreated,
		c.HyperedgesAdded,
		c.HyperedgesRemoved,
		c.Generations,
		c.GenerationDuration,
		c.ActiveStreams,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// HypergraphCreated counts one created hypergraph.
func (c *Collector) HypergraphCreated() {
	if c == nil {
		return
	}
	c.HypergraphsCreated.Inc()
}

// AddedHyperedges counts n saved hyperedges.
func (c *Collector) AddedHyperedges(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.HyperedgesAdded.Add(float64(n))
}

// RemovedHyperedge counts one removed hyperedge.
func (c *Collector) RemovedHyperedge() {
	if c == nil {
		return
	}
	c.HyperedgesRemoved.Inc()
}

// StreamStarted marks a generation stream as in flight and returns the
// function that records its outcome.
func (c *Collector) StreamStarted(kind string) func(err error) {
	if c == nil {
		return func(error) {}
	}
	start := time.Now()
	c.ActiveStreams.Inc()
	return func(err error) {
		c.ActiveStreams.Dec()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.Generations.WithLabelValues(kind, outcome).Inc()
		c.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// Middleware records request counts and durations by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
