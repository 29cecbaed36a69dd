package es

import (
	"log/slog"
	"time"
)

type (
	valueOption[T any] struct{ v T }

	LogOption     valueOption[*slog.Logger]
	MetricsOption valueOption[Metrics]
	DelayOption   valueOption[time.Duration]

	subscriptionsOpts struct {
		log     *slog.Logger
		metrics Metrics
		delay   time.Duration
	}

	// SubscriptionsOption configures Subscriptions and the InMemoryStore.
	SubscriptionsOption interface {
		applyToSubscriptions(*subscriptionsOpts)
	}
)

// WithLog sets the logger of a component.
func WithLog(l *slog.Logger) LogOption { return LogOption{v: l} }

// WithMetrics sets the metrics implementation of a component.
func WithMetrics(m Metrics) MetricsOption { return MetricsOption{v: m} }

// WithRegistrationDelay defers attaching new subscribers by d.
func WithRegistrationDelay(d time.Duration) DelayOption { return DelayOption{v: d} }

func (o LogOption) applyToSubscriptions(s *subscriptionsOpts)     { s.log = o.v }
func (o MetricsOption) applyToSubscriptions(s *subscriptionsOpts) { s.metrics = o.v }
func (o DelayOption) applyToSubscriptions(s *subscriptionsOpts)   { s.delay = o.v }

func newSubscriptionsOpts(opts ...SubscriptionsOption) subscriptionsOpts {
	options := subscriptionsOpts{
		log:     slog.Default(),
		metrics: NopMetrics(),
	}
	for _, opt := range opts {
		opt.applyToSubscriptions(&options)
	}
	options.log = logOrDefault(options.log)
	options.metrics = metricsOrNop(options.metrics)
	return options
}

func logOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return NopMetrics()
	}
	return m
}
