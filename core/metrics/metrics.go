// Package metrics holds the instrumentation primitives shared by the stores.
// Backends such as adapters/prometheus return their own implementations.
package metrics

import "time"

// Timer measures the duration of an operation. ObserveDuration records the
// time elapsed since the timer was created.
type Timer interface {
	ObserveDuration()
}

// TimerFunc adapts an observer of durations to a Timer started now.
func TimerFunc(observe func(time.Duration)) Timer {
	return &funcTimer{observe: observe, start: time.Now()}
}

type funcTimer struct {
	observe func(time.Duration)
	start   time.Time
}

func (t *funcTimer) ObserveDuration() { t.observe(time.Since(t.start)) }

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }
