// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the event sourcing engine and the HTTP API.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/entstore/core/metrics"
)

const namespace = "entstore"

func newTimer(h prometheus.Observer) metrics.Timer {
	return metrics.TimerFunc(func(d time.Duration) { h.Observe(d.Seconds()) })
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// AllMetrics holds the Prometheus implementations for every instrumented
// component.
type AllMetrics struct {
	ES   *esMetrics
	HTTP *httpMetrics
}

// NewAllMetrics creates and registers all metrics with reg.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		ES:   NewESMetrics(reg).(*esMetrics),
		HTTP: NewHTTPMetrics(reg).(*httpMetrics),
	}
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
