// Package metrics exposes Prometheus instrumentation for the HTTP server,
// the listing query engine and ingestion.
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

const namespace = "sftu"

// Metrics holds the registry and every collector the app records to.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queries         *prometheus.CounterVec
	hiddenResults   prometheus.Histogram
	ingestItems     *prometheus.CounterVec
}

// New creates a registry with Go and process collectors plus app metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_queries_total",
			Help:      "Listing queries evaluated, by viewer kind.",
		}, []string{"viewer"}),
		hiddenResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listing_hidden_results",
			Help:      "Results withheld from anonymous viewers per query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		ingestItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_items_total",
			Help:      "Feed items processed by ingestion, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.queries, m.hiddenResults, m.ingestItems)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveQuery records one listing query and, for anonymous viewers, how
// many results were withheld.
func (m *Metrics) ObserveQuery(authenticated bool, hidden int) {
	if m == nil {
		return
	}
	if authenticated {
		m.queries.WithLabelValues("member").Inc()
		return
	}
	m.queries.WithLabelValues("anonymous").Inc()
	m.hiddenResults.Observe(float64(hidden))
}

// IngestResult counts processed feed items; result is "new", "updated" or "skipped".
// A nil *Metrics records nothing.
func (m *Metrics) IngestResult(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ingestItems.WithLabelValues(result).Add(float64(n))
}
