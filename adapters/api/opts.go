package api

import (
	"log/slog"
	"time"

	"github.com/codewandler/entstore/core/metrics"
)

// Metrics instruments the HTTP API.
type Metrics interface {
	RequestDuration(route, method string) metrics.Timer
	RequestCompleted(route, method string, status int)
}

type nopMetrics struct{}

func (nopMetrics) RequestDuration(string, string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) RequestCompleted(string, string, int)         {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

type (
	valueOption[T any] struct{ v T }

	LogOption          valueOption[*slog.Logger]
	MetricsOption      valueOption[Metrics]
	WriteTimeoutOption valueOption[time.Duration]

	serverOpts struct {
		log          *slog.Logger
		metrics      Metrics
		writeTimeout time.Duration
	}

	Option interface {
		applyToServer(*serverOpts)
	}
)

func WithLog(l *slog.Logger) LogOption { return LogOption{v: l} }

func WithMetrics(m Metrics) MetricsOption { return MetricsOption{v: m} }

// WithWriteTimeout bounds how long a write request waits for its event to be
// applied.
func WithWriteTimeout(d time.Duration) WriteTimeoutOption { return WriteTimeoutOption{v: d} }

func (o LogOption) applyToServer(s *serverOpts)          { s.log = o.v }
func (o MetricsOption) applyToServer(s *serverOpts)      { s.metrics = o.v }
func (o WriteTimeoutOption) applyToServer(s *serverOpts) { s.writeTimeout = o.v }

func newServerOpts(opts ...Option) serverOpts {
	options := serverOpts{
		log:          slog.Default(),
		metrics:      NopMetrics(),
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt.applyToServer(&options)
	}
	if options.log == nil {
		options.log = slog.Default()
	}
	if options.metrics == nil {
		options.metrics = NopMetrics()
	}
	return options
}
