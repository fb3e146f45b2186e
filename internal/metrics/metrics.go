// Package metrics holds the Prometheus collectors for migration runs and the
// HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath is where the server exposes the metrics.
const DefaultPath = "/metrics"

// Collector owns a private registry so tests and embedders never collide
// with the global one. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	ChangesetOperations *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	PendingChangesets   prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Collector whose metric names start with namespace.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ChangesetOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changeset_operations_total",
			Help:      "Changeset operations by direction and outcome",
		}, []string{"direction", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_run_duration_seconds",
			Help:      "Duration of migration runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		PendingChangesets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_changesets",
			Help:      "Changesets known to this build but not yet applied, as of the last check",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		c.ChangesetOperations,
		c.RunDuration,
		c.PendingChangesets,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ChangesetDone counts one applied, reverted or failed changeset.
func (c *Collector) ChangesetDone(direction string, err error) {
	if c == nil {
		return
	}
	c.ChangesetOperations.WithLabelValues(direction, outcome(err)).Inc()
}

// RunDone observes a whole migration run.
func (c *Collector) RunDone(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.RunDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// SetPending records the pending count seen by a health check.
func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.PendingChangesets.Set(float64(n))
}

// RecordHTTPRequest observes one served request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
