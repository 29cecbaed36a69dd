// Package kv provides a key-value view over an event-sourced cache, with
// partial updates that are merged before they are written.
package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/entstore/core/es"
)

type (
	// Source is the event-sourced cache a Store reads from and writes through.
	// es.EventSourcing implements it.
	Source[T any] interface {
		Has(id es.Identifier) bool
		Get(id es.Identifier) (T, bool)
		Identifiers(path ...string) []es.Identifier
		Started() <-chan struct{}
		PushMutationEvent(ctx context.Context, id es.Identifier, v T) *es.Future[T]
		PushMutationEventRaw(ctx context.Context, id es.Identifier, payload []byte) *es.Future[T]
		PushTombstone(ctx context.Context, id es.Identifier) *es.Future[T]
	}

	// PatchModifier may rewrite the partial document of a patch before it is
	// merged.
	PatchModifier func(id es.Identifier, partial map[string]any) (map[string]any, error)

	UpdateHandler[T any] func(id es.Identifier, v T)
	DeleteHandler        func(id es.Identifier)
	FailureHandler       func(id es.Identifier, err error)
)

// Store is a mergeable key-value store. Every write goes through the event
// log; the log only ever records complete values.
type Store[T any] struct {
	log           *slog.Logger
	source        Source[T]
	codec         es.Codec[T]
	patchModifier PatchModifier
	onUpdate      []UpdateHandler[T]
	onDelete      []DeleteHandler
	onFailure     []FailureHandler
}

// New creates a store on top of source. codec must decode through the same
// pipeline as the source, so that decoding a partial document layers it over
// the cached value.
func New[T any](source Source[T], codec es.Codec[T], opts ...Option[T]) *Store[T] {
	options := storeOpts[T]{log: slog.Default()}
	for _, opt := range opts {
		opt.applyToStore(&options)
	}
	return &Store[T]{
		log:           options.log.With(slog.String("component", "kv")),
		source:        source,
		codec:         codec,
		patchModifier: options.patchModifier,
		onUpdate:      options.onUpdate,
		onDelete:      options.onDelete,
		onFailure:     options.onFailure,
	}
}

func (s *Store[T]) Started() <-chan struct{} { return s.source.Started() }

func (s *Store[T]) Has(id es.Identifier) bool { return s.source.Has(id) }

func (s *Store[T]) Get(id es.Identifier) (T, bool) { return s.source.Get(id) }

// Identifiers lists the stored identifiers below path.
func (s *Store[T]) Identifiers(path ...string) []es.Identifier {
	return s.source.Identifiers(path...)
}

// Put replaces the value at id.
func (s *Store[T]) Put(ctx context.Context, id es.Identifier, v T) *es.Future[T] {
	return s.observe(id, s.source.PushMutationEvent(ctx, id, v))
}

// Delete removes the value at id.
func (s *Store[T]) Delete(ctx context.Context, id es.Identifier) *es.Future[T] {
	f := s.source.PushTombstone(ctx, id)
	if len(s.onDelete) == 0 && len(s.onFailure) == 0 {
		return f
	}
	return f.Then(func(_ T, ok bool, err error) {
		switch {
		case err != nil:
			s.failed(id, err)
		case !ok:
			for _, h := range s.onDelete {
				h(id)
			}
		}
	})
}

// Patch merges partial into the value stored at path/id and writes the
// merged value. Objects are merged recursively, lists and scalars are
// replaced. Patching a value that does not exist fails with
// es.ErrInvalidArgument and writes nothing.
func (s *Store[T]) Patch(ctx context.Context, id string, partial map[string]any, path ...string) (*es.Future[T], error) {
	identifier := es.IdentifierFrom(id, path...)
	if identifier.ID() == "" {
		return nil, fmt.Errorf("%w: empty id", es.ErrInvalidArgument)
	}
	if err := identifier.Validate(); err != nil {
		return nil, err
	}
	if !s.source.Has(identifier) {
		return nil, fmt.Errorf("%w: %s does not exist", es.ErrInvalidArgument, identifier)
	}

	log := s.log.With(identifier.SlogAttr())

	if s.patchModifier != nil {
		modified, err := s.patchModifier(identifier, partial)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", es.ErrInvalidArgument, identifier, err)
		}
		partial = modified
	}

	payload, err := s.codec.SerializeMap(partial)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", es.ErrInvalidArgument, identifier, err)
	}
	// decoding as a replayed event layers the patch over the cached value
	merged, ok, err := s.codec.Deserialize(identifier, payload, s.codec.DefaultFormat(), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrInvalidArgument, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s: empty patch", es.ErrInvalidArgument, identifier)
	}
	full, err := s.codec.Serialize(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", es.ErrInvalidArgument, identifier, err)
	}

	log.Debug("patch", slog.Int("keys", len(partial)))
	return s.observe(identifier, s.source.PushMutationEventRaw(ctx, identifier, full)), nil
}

func (s *Store[T]) observe(id es.Identifier, f *es.Future[T]) *es.Future[T] {
	if len(s.onUpdate) == 0 && len(s.onFailure) == 0 {
		return f
	}
	return f.Then(func(v T, ok bool, err error) {
		switch {
		case err != nil:
			s.failed(id, err)
		case ok:
			for _, h := range s.onUpdate {
				h(id, v)
			}
		}
	})
}

func (s *Store[T]) failed(id es.Identifier, err error) {
	for _, h := range s.onFailure {
		h(id, err)
	}
}
