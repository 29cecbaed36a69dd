// Package entity stores typed entity instances.
//
// The value of an instance is layered from three sources, lowest precedence
// first: the schema default registered for its type, the defaults inherited
// from the defaults store and the instance's own payload. Live writes replace
// the instance payload; replayed events and patches are layered over the
// cached value.
package entity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/entstore/core/defaults"
	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/kv"
	"github.com/codewandler/entstore/core/registry"
)

// EventType is the event type entities are written to.
const EventType = "entities"

type Store[T any] struct {
	*kv.Store[T]

	log      *slog.Logger
	registry *registry.Registry[T]
	defaults *defaults.Store
	enc      *encoding.Encoding[T]
	engine   *es.EventSourcing[T]
}

// New creates the entity store. It subscribes to store only once defs has
// started, so inherited defaults are in place before entities are replayed.
func New[T any](store es.EventStore, reg *registry.Registry[T], defs *defaults.Store, opts ...Option[T]) *Store[T] {
	options := newOpts(opts...)

	s := &Store[T]{
		log:      options.log.With(slog.String("store", EventType)),
		registry: reg,
		defaults: defs,
	}
	s.enc = encoding.New[T](nil,
		encoding.WithLog(options.log),
		encoding.WithFormat(options.format),
		encoding.WithPreProcessors(encoding.EnvSubstitution(options.lookupEnv)),
		encoding.WithMiddlewares(encoding.LayerOver(encoding.Layer{
			Cache:                 s.cachedTree,
			IgnoreCacheOnMutation: true,
			Fallback:              s.baseTree,
		})),
	)
	s.engine = es.NewEventSourcing[T](es.SubscribeAfter(store, defs.Started()), s.enc, []string{EventType}, es.Options[T]{
		Log:           options.log,
		Metrics:       options.metrics,
		Name:          EventType,
		OnStart:       s.onStart,
		Validator:     options.validator,
		RetainSources: true,
	})
	s.Store = kv.New[T](s.engine, s.enc, append([]kv.Option[T]{kv.WithLog[T](options.log)}, options.kvOpts...)...)
	return s
}

func (s *Store[T]) Close() { s.engine.Close() }

// Reapply recomputes the instance at id from its retained events and the
// current defaults.
func (s *Store[T]) Reapply(ctx context.Context, id es.Identifier) error {
	return s.engine.Reapply(ctx, id)
}

// Base returns the value a new instance at id starts from: the schema
// default with the inherited defaults layered over it.
func (s *Store[T]) Base(id es.Identifier) (T, error) {
	tree, err := s.baseTree(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.enc.Materialize(tree)
}

func (s *Store[T]) baseTree(id es.Identifier) (map[string]any, error) {
	path := id.Path()
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: %s has no entity type", es.ErrInvalidArgument, id)
	}
	subtype, _ := s.registry.SplitSubType(path[0], path[1:])
	schema, err := s.registry.DefaultTree(path[0], subtype)
	if err != nil {
		return nil, err
	}
	inherited, _ := s.defaults.Defaults(id)
	return encoding.Merge(schema, inherited)
}

func (s *Store[T]) cachedTree(id es.Identifier) (map[string]any, bool) {
	v, ok := s.engine.Get(id)
	if !ok {
		return nil, false
	}
	tree, err := encoding.ToTree(v)
	if err != nil {
		s.log.Error("cannot convert cached entity", id.SlogAttr(), slog.Any("error", err))
		return nil, false
	}
	return tree, true
}

func (s *Store[T]) onStart(context.Context) error {
	s.log.Info("entities loaded", slog.Int("count", len(s.engine.Identifiers())))
	return nil
}
