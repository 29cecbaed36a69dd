package es

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"slices"
	"sync"

	"github.com/codewandler/entstore/core/cache"
	"github.com/codewandler/entstore/core/ds"
	"github.com/codewandler/entstore/core/perkey"
)

// Codec converts between values of T and event payloads.
// encoding.Encoding is the implementation used by the stores.
type Codec[T any] interface {
	// DefaultFormat is the format tag written on pushed events.
	DefaultFormat() string
	// HasValue reports whether payloads in format carry a value at all. It is
	// false for the UNKNOWN format and fails for unrecognized tags.
	HasValue(format string) (bool, error)
	Serialize(v T) ([]byte, error)
	SerializeMap(m map[string]any) ([]byte, error)
	// Deserialize reconstructs a value. ok is false if the payload holds no
	// value. mutation is true for live events and false for replayed ones.
	Deserialize(id Identifier, payload []byte, format string, mutation bool) (v T, ok bool, err error)
	IsEmpty(payload []byte) bool
}

type (
	// ReplayProcessor expands one replayed event into zero or more events.
	ReplayProcessor func(ReplayEvent) []ReplayEvent
	// MutationProcessor expands one live event into zero or more events.
	MutationProcessor func(MutationEvent) []MutationEvent
	// UpdateHook recomputes the entry at id during a reload.
	UpdateHook[T any] func(ctx context.Context, id Identifier, current T) error
	// Validator checks a freshly decoded value before it is cached.
	Validator[T any] func(id Identifier, v T) error
)

// Options configure an EventSourcing engine. The zero value is usable.
type Options[T any] struct {
	Log     *slog.Logger
	Metrics Metrics
	// Name labels logs and metrics. Defaults to the first event type.
	Name string
	// OnStart runs once after every event type has reached LISTENING.
	OnStart           func(ctx context.Context) error
	ReplayProcessor   ReplayProcessor
	MutationProcessor MutationProcessor
	// UpdateHook is called for every entry selected by a ReloadEvent. If nil
	// and RetainSources is set, Reapply is used.
	UpdateHook UpdateHook[T]
	Validator  Validator[T]
	// RetainSources keeps the events behind each cached value, which Reapply
	// needs. A mutation starts a new run, replayed events are appended.
	RetainSources bool
	// CompletionWorkers is the size of the pool completing write futures
	// (default: 2).
	CompletionWorkers int
}

// EventSourcing derives a typed cache from the events of one or more event
// types and tracks writes until their events have come back from the store.
//
// All cache writes for an identifier happen on the delivery goroutine of its
// event type, so they are applied in stream order.
type EventSourcing[T any] struct {
	log        *slog.Logger
	metrics    Metrics
	name       string
	store      EventStore
	codec      Codec[T]
	eventTypes []string
	opts       Options[T]

	cache        *cache.Sorted[Identifier, T]
	startedTypes *ds.StringSet
	startOnce    sync.Once
	started      chan struct{}

	mu      sync.Mutex
	pending map[Identifier]*Future[T]
	sources map[Identifier][]MutationEvent

	completions *perkey.Scheduler[uint64]
	workers     uint64
	seed        maphash.Seed
}

// NewEventSourcing creates the engine and subscribes it to store for
// eventTypes. The first event type is the one pushes are written to.
func NewEventSourcing[T any](store EventStore, codec Codec[T], eventTypes []string, opts Options[T]) *EventSourcing[T] {
	if len(eventTypes) == 0 {
		panic("es: event sourcing without event types")
	}
	name := opts.Name
	if name == "" {
		name = eventTypes[0]
	}
	workers := opts.CompletionWorkers
	if workers <= 0 {
		workers = 2
	}
	e := &EventSourcing[T]{
		log:          logOrDefault(opts.Log).With(slog.String("store", name)),
		metrics:      metricsOrNop(opts.Metrics),
		name:         name,
		store:        store,
		codec:        codec,
		eventTypes:   slices.Clone(eventTypes),
		opts:         opts,
		cache:        cache.NewSorted[Identifier, T](Identifier.Compare),
		startedTypes: ds.NewStringSet(),
		started:      make(chan struct{}),
		pending:      map[Identifier]*Future[T]{},
		sources:      map[Identifier][]MutationEvent{},
		completions:  perkey.New[uint64](),
		workers:      uint64(workers),
		seed:         maphash.MakeSeed(),
	}
	if e.opts.UpdateHook == nil && e.opts.RetainSources {
		e.opts.UpdateHook = func(ctx context.Context, id Identifier, _ T) error {
			return e.Reapply(ctx, id)
		}
	}

	store.Subscribe(e)
	return e
}

func (e *EventSourcing[T]) EventTypes() []string { return slices.Clone(e.eventTypes) }

// Started is closed once every event type has finished replaying and OnStart
// has returned.
func (e *EventSourcing[T]) Started() <-chan struct{} { return e.started }

// Close stops the completion pool. Futures that are still pending are never
// completed.
func (e *EventSourcing[T]) Close() { e.completions.Close() }

// === reads ===

func (e *EventSourcing[T]) Has(id Identifier) bool { return e.cache.Has(id) }

func (e *EventSourcing[T]) Get(id Identifier) (T, bool) { return e.cache.Get(id) }

// Identifiers returns the cached identifiers whose path starts with path, in
// identifier order.
func (e *EventSourcing[T]) Identifiers(path ...string) []Identifier {
	keys := e.cache.Keys()
	if len(path) == 0 {
		return keys
	}
	return slices.DeleteFunc(keys, func(id Identifier) bool { return !id.HasPrefix(path...) })
}

// PendingWrites returns the number of writes that have not come back yet.
func (e *EventSourcing[T]) PendingWrites() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// === writes ===

// PushMutationEvent writes v at id. The future completes with the value that
// was cached once the event has been applied.
func (e *EventSourcing[T]) PushMutationEvent(ctx context.Context, id Identifier, v T) *Future[T] {
	payload, err := e.codec.Serialize(v)
	if err != nil {
		return failedFuture[T](fmt.Errorf("%w: %s: %w", ErrEncode, id, err))
	}
	return e.push(ctx, NewMutationEvent(e.eventTypes[0], id, payload, e.codec.DefaultFormat()))
}

// PushTombstone removes the value at id.
func (e *EventSourcing[T]) PushTombstone(ctx context.Context, id Identifier) *Future[T] {
	ev := NewMutationEvent(e.eventTypes[0], id, nil, e.codec.DefaultFormat())
	ev.Deleted = true
	return e.push(ctx, ev)
}

// PushPartialMutationEvent writes a partial document at id. Whether it is
// merged onto the cached value is up to the codec.
func (e *EventSourcing[T]) PushPartialMutationEvent(ctx context.Context, id Identifier, partial map[string]any) *Future[T] {
	payload, err := e.codec.SerializeMap(partial)
	if err != nil {
		return failedFuture[T](fmt.Errorf("%w: %s: %w", ErrEncode, id, err))
	}
	return e.push(ctx, NewMutationEvent(e.eventTypes[0], id, payload, e.codec.DefaultFormat()))
}

// PushMutationEventRaw writes an already serialized payload in the default format.
func (e *EventSourcing[T]) PushMutationEventRaw(ctx context.Context, id Identifier, payload []byte) *Future[T] {
	return e.push(ctx, NewMutationEvent(e.eventTypes[0], id, payload, e.codec.DefaultFormat()))
}

func (e *EventSourcing[T]) push(ctx context.Context, ev MutationEvent) *Future[T] {
	timer := e.metrics.PushDuration(e.name)
	defer timer.ObserveDuration()

	if err := ev.Identifier.Validate(); err != nil {
		return failedFuture[T](err)
	}

	f := newFuture[T]()
	e.addPending(ev.Identifier, f)

	if err := e.store.Push(ctx, ev); err != nil {
		e.removePending(ev.Identifier, f)
		e.metrics.EventPushed(e.name, false)
		e.log.Error("push failed", ev.SlogAttr(), slog.Any("error", err))
		if !errors.Is(err, ErrStoreRejected) {
			err = fmt.Errorf("%w: %w", ErrStoreRejected, err)
		}
		f.fail(err)
		return f
	}
	e.metrics.EventPushed(e.name, true)
	return f
}

// addPending registers f for id. A handle already registered for id is
// replaced and will never complete.
func (e *EventSourcing[T]) addPending(id Identifier, f *Future[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[id]; ok {
		e.log.Warn("pending write replaced", id.SlogAttr())
	}
	e.pending[id] = f
	e.metrics.PendingWrites(e.name, len(e.pending))
}

func (e *EventSourcing[T]) removePending(id Identifier, f *Future[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending[id] == f {
		delete(e.pending, id)
	}
	e.metrics.PendingWrites(e.name, len(e.pending))
}

func (e *EventSourcing[T]) takePending(id Identifier) *Future[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.pending[id]
	if !ok {
		return nil
	}
	delete(e.pending, id)
	e.metrics.PendingWrites(e.name, len(e.pending))
	return f
}

// === delivery ===

func (e *EventSourcing[T]) OnEmit(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case ReplayEvent:
		if e.opts.ReplayProcessor == nil {
			return e.apply(ctx, ev.MutationEvent, false)
		}
		var errs []error
		for _, produced := range e.opts.ReplayProcessor(ev) {
			errs = append(errs, e.apply(ctx, produced.MutationEvent, false))
		}
		return errors.Join(errs...)

	case MutationEvent:
		if e.opts.MutationProcessor == nil {
			return e.apply(ctx, ev, true)
		}
		return e.processMutation(ctx, ev)

	case StateChangeEvent:
		e.log.Debug("state changed", slog.String("event_type", ev.Type), slog.String("state", string(ev.State)))
		if ev.State == StateListening {
			e.startedTypes.Add(ev.Type)
			if e.startedTypes.ContainsAll(e.eventTypes...) {
				return e.start(ctx)
			}
		}
		return nil

	case ReloadEvent:
		return e.reload(ctx, ev.Filter)

	default:
		return fmt.Errorf("%w: unexpected event %T", ErrInvalidArgument, event)
	}
}

func (e *EventSourcing[T]) start(ctx context.Context) (err error) {
	e.startOnce.Do(func() {
		defer close(e.started)
		e.log.Debug("started", slog.Int("entries", e.cache.Len()))
		if e.opts.OnStart != nil {
			err = e.opts.OnStart(ctx)
		}
	})
	return err
}

// processMutation runs the mutation processor while keeping the pending
// handle of the original event. The handle moves to the produced event with
// the same identifier or, if there is none, to the first produced event.
func (e *EventSourcing[T]) processMutation(ctx context.Context, ev MutationEvent) error {
	f := e.takePending(ev.Identifier)
	produced := e.opts.MutationProcessor(ev)

	if f != nil {
		if len(produced) == 0 {
			e.resolve(ev.Identifier, f, func() { f.complete(*new(T), false) })
		} else {
			target := produced[0].Identifier
			for _, p := range produced {
				if p.Identifier == ev.Identifier {
					target = p.Identifier
					break
				}
			}
			e.addPending(target, f)
		}
	}

	var errs []error
	for _, p := range produced {
		errs = append(errs, e.apply(ctx, p, true))
	}
	return errors.Join(errs...)
}

// apply updates the cache for one event and completes the pending write of
// its identifier. Decode and validation errors leave the cached value
// untouched and are returned after the bookkeeping is done.
func (e *EventSourcing[T]) apply(_ context.Context, ev MutationEvent, mutation bool) error {
	timer := e.metrics.ApplyDuration(e.name)
	defer timer.ObserveDuration()

	id := ev.Identifier
	log := e.log.With(ev.SlogAttr())

	var (
		value   T
		present bool
	)

	// the format decides first, a tombstone in a format without values is
	// ignored like any other event in that format
	hasValue, err := e.codec.HasValue(ev.Format)
	switch {
	case err != nil:
		// reported below

	case !hasValue:
		log.Debug("event without value")
		if f := e.takePending(id); f != nil {
			e.resolve(id, f, func() { f.complete(value, false) })
		}
		e.metrics.EventApplied(e.name, !mutation, true)
		return nil

	case ev.Deleted || e.codec.IsEmpty(ev.Payload):
		e.remove(id)

	default:
		var v T
		v, present, err = e.codec.Deserialize(id, ev.Payload, ev.Format, mutation)
		if err != nil {
			if !errors.Is(err, ErrDecode) {
				err = fmt.Errorf("%w: %s: %w", ErrDecode, id, err)
			}
			break
		}
		if present && e.opts.Validator != nil {
			if verr := e.opts.Validator(id, v); verr != nil {
				err = fmt.Errorf("%w: %s: %w", ErrValidation, id, verr)
				break
			}
		}
		if present {
			value = v
			e.cache.Put(id, v)
			e.retain(id, ev, mutation)
		} else {
			e.remove(id)
		}
	}

	e.metrics.CacheEntries(e.name, e.cache.Len())
	e.metrics.EventApplied(e.name, !mutation, err == nil)

	if f := e.takePending(id); f != nil {
		if err != nil {
			ferr := err
			e.resolve(id, f, func() { f.fail(ferr) })
		} else {
			e.resolve(id, f, func() { f.complete(value, present) })
		}
	}

	if err != nil {
		log.Error("apply failed", slog.Any("error", err))
		return err
	}
	log.Debug("applied", slog.Bool("present", present))
	return nil
}

func (e *EventSourcing[T]) remove(id Identifier) {
	e.cache.Delete(id)
	if e.opts.RetainSources {
		e.mu.Lock()
		delete(e.sources, id)
		e.mu.Unlock()
	}
}

// retain records ev as a source of the value at id. A mutation replaces the
// value and starts a new run, a replayed event layers over the run so far.
func (e *EventSourcing[T]) retain(id Identifier, ev MutationEvent, mutation bool) {
	if !e.opts.RetainSources {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if mutation {
		e.sources[id] = []MutationEvent{ev}
		return
	}
	e.sources[id] = append(e.sources[id], ev)
}

// resolve completes a future on the completion pool, never on the
// delivery goroutine.
func (e *EventSourcing[T]) resolve(id Identifier, f *Future[T], complete func()) {
	key := maphash.String(e.seed, id.String()) % e.workers
	if err := e.completions.Go(key, complete); err != nil {
		f.fail(fmt.Errorf("%w: %w", ErrClosed, err))
	}
}

// reload calls the update hook for every cached entry matched by filter, one
// after another in identifier order, which sorts by entity type first. The
// first failing step ends the reload.
func (e *EventSourcing[T]) reload(ctx context.Context, filter EventFilter) error {
	if e.opts.UpdateHook == nil {
		e.log.Debug("reload ignored, no update hook")
		return nil
	}

	// cache keys are already in identifier order
	var ids []Identifier
	for _, id := range e.cache.Keys() {
		if filter.Matches(id) {
			ids = append(ids, id)
		}
	}
	e.log.Debug("reload", slog.Int("entries", len(ids)))
	for _, id := range ids {
		current, ok := e.cache.Get(id)
		if !ok {
			continue
		}
		if err := e.opts.UpdateHook(ctx, id, current); err != nil {
			return fmt.Errorf("reload %s: %w", id, err)
		}
	}
	return nil
}

// Reapply decodes the retained events of id again and replaces the cached
// value with the result. The first event of the run ignores the cached value,
// the rest layer over it the way they did when they were applied. On failure
// the previous value is restored. It requires RetainSources.
func (e *EventSourcing[T]) Reapply(_ context.Context, id Identifier) error {
	if !e.opts.RetainSources {
		return fmt.Errorf("%w: sources are not retained", ErrInvalidArgument)
	}
	e.mu.Lock()
	run := slices.Clone(e.sources[id])
	e.mu.Unlock()
	if len(run) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	prev, had := e.cache.Get(id)
	restore := func() {
		if had {
			e.cache.Put(id, prev)
		} else {
			e.cache.Delete(id)
		}
	}

	var (
		v       T
		present bool
	)
	for i, ev := range run {
		var err error
		if v, present, err = e.codec.Deserialize(id, ev.Payload, ev.Format, i == 0); err != nil {
			restore()
			return fmt.Errorf("%w: %s: %w", ErrDecode, id, err)
		}
		if present {
			e.cache.Put(id, v)
		} else {
			e.cache.Delete(id)
		}
	}

	if !present {
		e.remove(id)
		return nil
	}
	if e.opts.Validator != nil {
		if err := e.opts.Validator(id, v); err != nil {
			restore()
			return fmt.Errorf("%w: %s: %w", ErrValidation, id, err)
		}
	}
	return nil
}

var _ Subscriber = (*EventSourcing[any])(nil)
