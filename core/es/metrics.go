package es

import "github.com/codewandler/entstore/core/metrics"

// Metrics defines the instrumentation points of the engine and the
// subscription broker. Implementations must be safe for concurrent use.
type Metrics interface {
	// Engine
	PushDuration(store string) metrics.Timer
	EventPushed(store string, success bool)
	ApplyDuration(store string) metrics.Timer
	EventApplied(store string, replay bool, success bool)
	PendingWrites(store string, count int)
	CacheEntries(store string, count int)

	// Subscriptions
	EventEmitted(eventType string)
	SubscriberBacklog(eventType string, backlog int)
	SubscriberError(eventType string)
}

type nopMetrics struct{}

func (nopMetrics) PushDuration(string) metrics.Timer  { return metrics.NopTimer() }
func (nopMetrics) EventPushed(string, bool)           {}
func (nopMetrics) ApplyDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) EventApplied(string, bool, bool)    {}
func (nopMetrics) PendingWrites(string, int)          {}
func (nopMetrics) CacheEntries(string, int)           {}
func (nopMetrics) EventEmitted(string)                {}
func (nopMetrics) SubscriberBacklog(string, int)      {}
func (nopMetrics) SubscriberError(string)             {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }
