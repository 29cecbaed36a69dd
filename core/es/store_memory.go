package es

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// InMemoryStore is an EventStore for tests and development. It keeps the log in
// memory and delivers events through Subscriptions.
type InMemoryStore struct {
	log  *slog.Logger
	subs *Subscriptions

	mu     sync.Mutex
	events []MutationEvent
}

func NewInMemoryStore(opts ...SubscriptionsOption) *InMemoryStore {
	options := newSubscriptionsOpts(opts...)
	return &InMemoryStore{
		log:  options.log.With(slog.String("store", "memory")),
		subs: NewSubscriptions(opts...),
	}
}

func (s *InMemoryStore) Subscribe(sub Subscriber) { s.subs.AddSubscriber(sub) }

// Replay seeds the log with historical events. It is meant to be called
// before Start; events are delivered as ReplayEvents.
func (s *InMemoryStore) Replay(events ...ReplayEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreRejected, err)
		}
		s.events = append(s.events, ev.MutationEvent)
		if err := s.subs.EmitEvent(ev); err != nil {
			return err
		}
	}
	s.log.Debug("replay queued", slog.Int("events", len(events)))
	return nil
}

// Start ends the replay phase.
func (s *InMemoryStore) Start() { s.subs.StartListening() }

func (s *InMemoryStore) Push(ctx context.Context, ev MutationEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreRejected, err)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreRejected, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.subs.EmitEvent(ev); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreRejected, err)
	}
	s.events = append(s.events, ev)
	s.log.Debug("append", ev.SlogAttr(), slog.Int("log_size", len(s.events)))
	return nil
}

// Reload asks the subscribers of eventType to recompute the entries matched by filter.
func (s *InMemoryStore) Reload(eventType string, filter EventFilter) error {
	return s.subs.EmitEvent(ReloadEvent{Type: eventType, Filter: filter})
}

// Events returns a copy of the log.
func (s *InMemoryStore) Events() []MutationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *InMemoryStore) Close() { s.subs.Close() }

var _ EventStore = (*InMemoryStore)(nil)
