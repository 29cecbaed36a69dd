package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/metrics"
)

type esMetrics struct {
	// Engine
	pushDuration  *prometheus.HistogramVec
	eventsPushed  *prometheus.CounterVec
	applyDuration *prometheus.HistogramVec
	eventsApplied *prometheus.CounterVec
	pendingWrites *prometheus.GaugeVec
	cacheEntries  *prometheus.GaugeVec

	// Subscriptions
	eventsEmitted     *prometheus.CounterVec
	subscriberBacklog *prometheus.GaugeVec
	subscriberErrors  *prometheus.CounterVec
}

// NewESMetrics creates a Prometheus implementation of es.Metrics.
func NewESMetrics(reg prometheus.Registerer) es.Metrics {
	m := &esMetrics{
		pushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "es_push_duration_seconds",
			Help:      "Latency of pushing a mutation event to the event store in seconds",
			Buckets:   defaultBuckets,
		}, []string{"store"}),

		eventsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "es_events_pushed_total",
			Help:      "Total number of mutation events pushed",
		}, []string{"store", "success"}),

		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "es_apply_duration_seconds",
			Help:      "Latency of applying an event to the cache in seconds",
			Buckets:   defaultBuckets,
		}, []string{"store"}),

		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "es_events_applied_total",
			Help:      "Total number of events applied to the cache",
		}, []string{"store", "replay", "success"}),

		pendingWrites: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "es_pending_writes",
			Help:      "Writes waiting for their event to be applied",
		}, []string{"store"}),

		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "es_cache_entries",
			Help:      "Number of cached entries",
		}, []string{"store"}),

		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "es_events_emitted_total",
			Help:      "Total number of events emitted to subscribers",
		}, []string{"event_type"}),

		subscriberBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "es_subscriber_backlog",
			Help:      "Events queued for a subscriber",
		}, []string{"event_type"}),

		subscriberErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "es_subscriber_errors_total",
			Help:      "Total number of events a subscriber failed to process",
		}, []string{"event_type"}),
	}

	reg.MustRegister(
		m.pushDuration,
		m.eventsPushed,
		m.applyDuration,
		m.eventsApplied,
		m.pendingWrites,
		m.cacheEntries,
		m.eventsEmitted,
		m.subscriberBacklog,
		m.subscriberErrors,
	)

	return m
}

func (m *esMetrics) PushDuration(store string) metrics.Timer {
	return newTimer(m.pushDuration.WithLabelValues(store))
}

func (m *esMetrics) EventPushed(store string, success bool) {
	m.eventsPushed.WithLabelValues(store, boolToStr(success)).Inc()
}

func (m *esMetrics) ApplyDuration(store string) metrics.Timer {
	return newTimer(m.applyDuration.WithLabelValues(store))
}

func (m *esMetrics) EventApplied(store string, replay bool, success bool) {
	m.eventsApplied.WithLabelValues(store, boolToStr(replay), boolToStr(success)).Inc()
}

func (m *esMetrics) PendingWrites(store string, count int) {
	m.pendingWrites.WithLabelValues(store).Set(float64(count))
}

func (m *esMetrics) CacheEntries(store string, count int) {
	m.cacheEntries.WithLabelValues(store).Set(float64(count))
}

func (m *esMetrics) EventEmitted(eventType string) {
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

func (m *esMetrics) SubscriberBacklog(eventType string, backlog int) {
	m.subscriberBacklog.WithLabelValues(eventType).Set(float64(backlog))
}

func (m *esMetrics) SubscriberError(eventType string) {
	m.subscriberErrors.WithLabelValues(eventType).Inc()
}

var _ es.Metrics = (*esMetrics)(nil)
