package entity

import (
	"log/slog"
	"os"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/kv"
)

type (
	storeOpts[T any] struct {
		log       *slog.Logger
		metrics   es.Metrics
		format    encoding.Format
		lookupEnv func(string) (string, bool)
		validator es.Validator[T]
		kvOpts    []kv.Option[T]
	}

	Option[T any] func(*storeOpts[T])
)

func WithLog[T any](l *slog.Logger) Option[T] {
	return func(o *storeOpts[T]) { o.log = l }
}

func WithMetrics[T any](m es.Metrics) Option[T] {
	return func(o *storeOpts[T]) { o.metrics = m }
}

// WithFormat sets the format written values are serialized in.
func WithFormat[T any](f encoding.Format) Option[T] {
	return func(o *storeOpts[T]) { o.format = f }
}

// WithLookupEnv sets the environment used to substitute ${NAME} in payloads.
func WithLookupEnv[T any](fn func(string) (string, bool)) Option[T] {
	return func(o *storeOpts[T]) { o.lookupEnv = fn }
}

// WithValidator rejects decoded instances that fail v.
func WithValidator[T any](v es.Validator[T]) Option[T] {
	return func(o *storeOpts[T]) { o.validator = v }
}

// WithKVOptions passes options to the underlying key-value store.
func WithKVOptions[T any](opts ...kv.Option[T]) Option[T] {
	return func(o *storeOpts[T]) { o.kvOpts = append(o.kvOpts, opts...) }
}

func newOpts[T any](opts ...Option[T]) storeOpts[T] {
	options := storeOpts[T]{
		log:       slog.Default(),
		metrics:   es.NopMetrics(),
		format:    encoding.JSON,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
