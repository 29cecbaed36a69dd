package es

import (
	"context"
)

type (
	// Subscriber consumes the events of one or more event types.
	Subscriber interface {
		// EventTypes returns the event types the subscriber wants to receive.
		EventTypes() []string
		// OnEmit is called for every event of a subscribed type, in stream order.
		// Errors are reported by the caller and never stop the stream.
		OnEmit(ctx context.Context, event Event) error
	}

	// EventStore is the append-only event log the cache is derived from.
	//
	// A store replays its history to every subscriber, followed by a
	// StateChangeEvent with StateListening and then every newly pushed event.
	EventStore interface {
		Subscribe(sub Subscriber)
		Push(ctx context.Context, event MutationEvent) error
	}
)

type afterStore struct {
	EventStore
	ready <-chan struct{}
}

// SubscribeAfter returns a view of store whose Subscribe waits until ready is
// closed. A store whose values depend on another store uses it to replay only
// once the other store has started.
func SubscribeAfter(store EventStore, ready <-chan struct{}) EventStore {
	return afterStore{EventStore: store, ready: ready}
}

func (s afterStore) Subscribe(sub Subscriber) {
	go func() {
		<-s.ready
		s.EventStore.Subscribe(sub)
	}()
}
