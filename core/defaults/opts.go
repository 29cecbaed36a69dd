package defaults

import (
	"log/slog"
	"os"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
)

type (
	valueOption[T any] struct{ v T }

	LogOption       valueOption[*slog.Logger]
	MetricsOption   valueOption[es.Metrics]
	FormatOption    valueOption[encoding.Format]
	LookupEnvOption valueOption[func(string) (string, bool)]

	storeOpts struct {
		log       *slog.Logger
		metrics   es.Metrics
		format    encoding.Format
		lookupEnv func(string) (string, bool)
	}

	Option interface{ applyToStore(*storeOpts) }
)

func WithLog(l *slog.Logger) LogOption       { return LogOption{v: l} }
func WithMetrics(m es.Metrics) MetricsOption { return MetricsOption{v: m} }

// WithFormat sets the format written values are serialized in.
func WithFormat(f encoding.Format) FormatOption { return FormatOption{v: f} }

// WithLookupEnv sets the environment used to substitute ${NAME} in payloads.
func WithLookupEnv(fn func(string) (string, bool)) LookupEnvOption {
	return LookupEnvOption{v: fn}
}

func (o LogOption) applyToStore(s *storeOpts)       { s.log = o.v }
func (o MetricsOption) applyToStore(s *storeOpts)   { s.metrics = o.v }
func (o FormatOption) applyToStore(s *storeOpts)    { s.format = o.v }
func (o LookupEnvOption) applyToStore(s *storeOpts) { s.lookupEnv = o.v }

func newOpts(opts ...Option) storeOpts {
	options := storeOpts{
		log:       slog.Default(),
		metrics:   es.NopMetrics(),
		format:    encoding.JSON,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt.applyToStore(&options)
	}
	return options
}
