package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/entstore/adapters/api"
	"github.com/codewandler/entstore/core/metrics"
)

type httpMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
}

// NewHTTPMetrics creates a Prometheus implementation of api.Metrics.
func NewHTTPMetrics(reg prometheus.Registerer) api.Metrics {
	m := &httpMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   defaultBuckets,
		}, []string{"route", "method"}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),
	}

	reg.MustRegister(m.requestDuration, m.requests)
	return m
}

func (m *httpMetrics) RequestDuration(route, method string) metrics.Timer {
	return newTimer(m.requestDuration.WithLabelValues(route, method))
}

func (m *httpMetrics) RequestCompleted(route, method string, status int) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

var _ api.Metrics = (*httpMetrics)(nil)
