package es

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Subscriptions fans appended events out into one ordered stream per event
// type. Every stream starts with a REPLAYING marker followed by the events
// queued before StartListening, then a LISTENING marker, then live events.
// All subscribers of an event type observe the same order, regardless of when
// they attached.
type Subscriptions struct {
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	metrics Metrics
	delay   time.Duration
	wg      sync.WaitGroup

	mu      sync.Mutex
	streams map[string]*stream
	started bool
}

func NewSubscriptions(opts ...SubscriptionsOption) *Subscriptions {
	options := newSubscriptionsOpts(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriptions{
		ctx:     ctx,
		cancel:  cancel,
		log:     options.log.With(slog.String("component", "subscriptions")),
		metrics: options.metrics,
		delay:   options.delay,
		streams: map[string]*stream{},
	}
}

// AddSubscriber registers sub asynchronously. After the registration delay the
// subscriber is attached to its event types one after another; the next type
// is attached only once the previous stream has delivered its LISTENING marker.
func (s *Subscriptions) AddSubscriber(sub Subscriber) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.delay > 0 {
			t := time.NewTimer(s.delay)
			defer t.Stop()
			select {
			case <-s.ctx.Done():
				return
			case <-t.C:
			}
		}

		s.log.Debug("new subscriber", slog.Any("event_types", sub.EventTypes()), slog.String("subscriber", fmt.Sprintf("%T", sub)))

		for _, eventType := range sub.EventTypes() {
			mb := s.getStream(eventType).attach(sub)

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				mb.run(s.ctx)
			}()

			select {
			case <-s.ctx.Done():
				return
			case <-mb.Listening():
			}
		}
	}()
}

// EmitEvent appends ev to the stream of its event type.
func (s *Subscriptions) EmitEvent(ev Event) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	if ev.EventType() == "" {
		return fmt.Errorf("%w: event without type", ErrInvalidArgument)
	}
	s.getStream(ev.EventType()).queue(ev)
	s.metrics.EventEmitted(ev.EventType())
	return nil
}

// StartListening ends the replay phase of every existing stream. Streams
// created later start listening right away.
func (s *Subscriptions) StartListening() {
	s.mu.Lock()
	s.started = true
	streams := make([]*stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	for _, st := range streams {
		st.listen()
	}
	s.log.Debug("started listening", slog.Int("streams", len(streams)))
}

// Close stops delivery and waits for all subscriber goroutines to exit.
func (s *Subscriptions) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Subscriptions) getStream(eventType string) *stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[eventType]
	if !ok {
		st = newStream(eventType, s.log, s.metrics)
		if s.started {
			st.listen()
		}
		s.streams[eventType] = st
	}
	return st
}
