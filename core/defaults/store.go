// Package defaults stores hierarchical defaults for entities.
//
// A default declared for an entity type applies to every registered subtype
// of it. Declarations are written to the log once; the store expands each
// event into one cache entry per affected subtype, keyed
// {entityType}/{subtype...}/defaults. Declarations with a key path are nested
// under that path before they are layered over the existing defaults.
package defaults

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/kv"
)

// EventType is the event type defaults are written to.
const EventType = "defaults"

type Store struct {
	*kv.Store[map[string]any]

	log     *slog.Logger
	schemas Schemas
	enc     *encoding.Encoding[map[string]any]
	engine  *es.EventSourcing[map[string]any]
}

func New(store es.EventStore, schemas Schemas, opts ...Option) *Store {
	options := newOpts(opts...)

	s := &Store{
		log:     options.log.With(slog.String("store", EventType)),
		schemas: schemas,
	}
	s.enc = encoding.New[map[string]any](nil,
		encoding.WithLog(options.log),
		encoding.WithFormat(options.format),
		encoding.WithPreProcessors(encoding.EnvSubstitution(options.lookupEnv)),
		encoding.WithMiddlewares(encoding.LayerOver(encoding.Layer{Cache: s.cached})),
	)
	s.engine = es.NewEventSourcing[map[string]any](store, s.enc, []string{EventType}, es.Options[map[string]any]{
		Log:     options.log,
		Metrics: options.metrics,
		Name:    EventType,
		OnStart: s.onStart,
		ReplayProcessor: func(ev es.ReplayEvent) []es.ReplayEvent {
			expanded := s.expand(ev.MutationEvent)
			out := make([]es.ReplayEvent, len(expanded))
			for i, m := range expanded {
				out[i] = es.ReplayEvent{MutationEvent: m, AdditionalLocation: ev.AdditionalLocation}
			}
			return out
		},
		MutationProcessor: s.expand,
	})
	s.Store = kv.New[map[string]any](s.engine, s.enc,
		kv.WithLog[map[string]any](options.log),
		kv.WithPatchModifier[map[string]any](rejectRemovals),
	)
	return s
}

func (s *Store) Close() { s.engine.Close() }

// rejectRemovals refuses patches with null values. Declarations layer over
// the cached defaults of every affected subtype, so a null cannot remove a key.
func rejectRemovals(_ es.Identifier, partial map[string]any) (map[string]any, error) {
	if key, ok := findNull(partial, nil); ok {
		return nil, fmt.Errorf("defaults cannot remove %s", key)
	}
	return partial, nil
}

func findNull(tree map[string]any, path []string) (string, bool) {
	for k, v := range tree {
		p := append(slices.Clone(path), k)
		switch v := v.(type) {
		case nil:
			return strings.Join(p, "."), true
		case map[string]any:
			if key, ok := findNull(v, p); ok {
				return key, true
			}
		}
	}
	return "", false
}

func (s *Store) cached(id es.Identifier) (map[string]any, bool) { return s.engine.Get(id) }

func (s *Store) onStart(context.Context) error {
	for _, id := range s.engine.Identifiers() {
		s.log.Debug("loaded defaults", id.SlogAttr())
	}
	return nil
}

// expand turns a declaration into one event per affected cache key.
func (s *Store) expand(ev es.MutationEvent) []es.MutationEvent {
	if s.enc.IsEmpty(ev.Payload) {
		return nil
	}
	log := s.log.With(ev.SlogAttr())

	p, err := ParsePath(ev.Identifier, s.schemas)
	if err != nil {
		log.Error("invalid defaults path", slog.Any("error", err))
		return nil
	}

	payload := ev.Payload
	if len(p.KeyPath) > 0 {
		alias, _ := s.schemas.KeyPathAlias(p.KeyPath[len(p.KeyPath)-1])
		if payload, err = s.enc.NestPayload(ev.Payload, ev.Format, p.KeyPath, alias); err != nil {
			log.Error("cannot nest defaults", slog.Any("error", err))
			return nil
		}
	}

	keys := []es.Identifier{p.CacheKey()}
	for _, sub := range s.schemas.SubTypes(p.EntityType, p.SubType) {
		keys = append(keys, cacheKey(p.EntityType, sub))
	}

	out := make([]es.MutationEvent, len(keys))
	for i, key := range keys {
		out[i] = ev.WithIdentifier(key).WithPayload(payload)
	}
	log.Debug("expanded defaults", slog.Int("keys", len(keys)))
	return out
}

// Defaults returns the defaults that apply to an entity instance. The
// instance path is walked upwards, the first cached entry wins.
func (s *Store) Defaults(id es.Identifier) (map[string]any, bool) {
	path := id.Path()
	for n := len(path); n > 0; n-- {
		if v, ok := s.engine.Get(cacheKey(path[0], path[1:n])); ok {
			return v, true
		}
	}
	return nil, false
}

// Builder returns the schema default of the type addressed by id with the
// cached defaults layered over it.
func (s *Store) Builder(id es.Identifier) (map[string]any, error) {
	p, err := ParsePath(id, s.schemas)
	if err != nil {
		return nil, err
	}
	base, err := s.schemas.DefaultTree(p.EntityType, p.SubType)
	if err != nil {
		return nil, err
	}
	cached, _ := s.engine.Get(p.CacheKey())
	return encoding.Merge(base, cached)
}
