// Package es provides an event-sourced cache for configuration and entity data.
//
// # Overview
//
// Values are never written to the cache directly. Every write is a
// [MutationEvent] appended to an [EventStore]; the store delivers the event
// back to its subscribers and [EventSourcing] applies it to its cache. On
// startup the store replays its history first, so the cache is rebuilt from
// the log before live events are applied.
//
// # Core Components
//
// Identifier: the hierarchical key of a cached value, a list of path segments
// plus a leaf id. Its textual form is "{path...}/{id}".
//
//	id := es.NewIdentifier("vineyards", "services")
//	id.String() // "services/vineyards"
//
// Subscriptions: fans events out into one ordered stream per event type.
// Every subscriber of a type sees the same order, starting with a
// [StateChangeEvent] in [StateReplaying], the replayed history, a
// [StateChangeEvent] in [StateListening] and then live events. Subscribers
// that attach late still see the full history first.
//
// EventSourcing: the engine. Push methods return a [Future] that completes
// once the event came back from the store and was applied:
//
//	e := es.NewEventSourcing[Service](store, encoding.New[Service](nil), []string{"entities"}, es.Options[Service]{})
//	v, ok, err := e.PushMutationEvent(ctx, id, svc).Await(ctx)
//
// Futures are completed by a small worker pool, never on the delivery
// goroutine, so a subscriber of one event type may wait for writes to another.
//
// # Failure Handling
//
// A payload that cannot be decoded, or that fails the validator, does not
// stop the stream. The cached value is kept, the error is logged and the
// future of the write, if any, fails with [ErrDecode] or [ErrValidation].
// A push the store rejects fails its future with [ErrStoreRejected] right away.
//
// # Implementations
//
// [InMemoryStore] keeps the log in memory and is meant for tests. The
// adapters/nats package provides a store backed by NATS JetStream.
package es
