// Package metrics owns the Prometheus registry for the allocator service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds a private registry and the collectors recorded by the service.
type Metrics struct {
	registry *prometheus.Registry

	solvesTotal     *prometheus.CounterVec
	solveDuration   prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a registry with Go and process collectors plus the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.solvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_solves_total",
		Help: "Total number of budget allocation solves by outcome",
	}, []string{"status"})

	m.solveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocator_solve_duration_seconds",
		Help:    "Time spent solving a single allocation problem",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	reg.MustRegister(m.solvesTotal, m.solveDuration, m.requestsTotal, m.requestDuration)
	return m
}

// ObserveSolve records the outcome and duration of one allocation.
// It is safe to call on a nil receiver.
func (m *Metrics) ObserveSolve(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solvesTotal.WithLabelValues(status).Inc()
	m.solveDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
