package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus metrics. Each bounded
// context registers its own domain counters next to its service; this
// package only carries the HTTP transport view.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// New creates and registers all application-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineage_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_http_requests_total",
			Help: "Total HTTP requests by method and status",
		}, []string{"method", "status"}),
	}
}

// ObserveRequest records one completed HTTP request. Safe on a nil
// receiver so handlers can run without metrics in tests.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, code).Inc()
}
