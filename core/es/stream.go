package es

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// stream is the ordered stream of one event type. It keeps every mutation it
// has seen so that late subscribers replay the full history before going
// live, so its memory grows with the log. Reloads only reach the subscribers
// attached when they are emitted; a later subscriber builds its cache from
// the history and has nothing to recompute.
type stream struct {
	eventType string
	log       *slog.Logger
	metrics   Metrics

	mu        sync.Mutex
	history   []Event
	listening bool
	mailboxes []*mailbox
}

func newStream(eventType string, log *slog.Logger, m Metrics) *stream {
	s := &stream{
		eventType: eventType,
		log:       log.With(slog.String("event_type", eventType)),
		metrics:   m,
	}
	s.queue(StateChangeEvent{Type: eventType, State: StateReplaying})
	return s
}

func (s *stream) queue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ev)
}

func (s *stream) appendLocked(ev Event) {
	if _, reload := ev.(ReloadEvent); !reload {
		s.history = append(s.history, ev)
	}
	for _, mb := range s.mailboxes {
		mb.put(ev)
	}
}

// listen emits the LISTENING marker once.
func (s *stream) listen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return
	}
	s.listening = true
	s.appendLocked(StateChangeEvent{Type: s.eventType, State: StateListening})
	s.log.Debug("listening", slog.Int("replayed", len(s.history)-2))
}

// attach creates a mailbox for sub, fills it with the history and registers
// it for live events. History and registration happen under the same lock, so
// the subscriber sees exactly the order every other subscriber sees.
func (s *stream) attach(sub Subscriber) *mailbox {
	mb := newMailbox(s.eventType, sub, s.log, s.metrics)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.history {
		mb.put(ev)
	}
	s.mailboxes = append(s.mailboxes, mb)
	return mb
}

// === mailbox ===

// mailbox is an unbounded FIFO feeding a single subscriber for one event type.
// Producers never block on it.
type mailbox struct {
	eventType string
	sub       Subscriber
	log       *slog.Logger
	metrics   Metrics

	mu     sync.Mutex
	queue  []Event
	signal chan struct{}

	listeningOnce sync.Once
	listening     chan struct{}
}

func newMailbox(eventType string, sub Subscriber, log *slog.Logger, m Metrics) *mailbox {
	return &mailbox{
		eventType: eventType,
		sub:       sub,
		log:       log.With(slog.String("subscriber", fmt.Sprintf("%T", sub))),
		metrics:   m,
		signal:    make(chan struct{}, 1),
		listening: make(chan struct{}),
	}
}

// Listening is closed once the subscriber has processed the LISTENING marker.
func (m *mailbox) Listening() <-chan struct{} { return m.listening }

func (m *mailbox) put(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	backlog := len(m.queue)
	m.mu.Unlock()

	m.metrics.SubscriberBacklog(m.eventType, backlog)

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) next() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	ev := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return ev, true
}

func (m *mailbox) run(ctx context.Context) {
	for {
		ev, ok := m.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.signal:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		m.deliver(ctx, ev)
	}
}

func (m *mailbox) deliver(ctx context.Context, ev Event) {
	if sc, ok := ev.(StateChangeEvent); ok && sc.State == StateListening {
		// signal only after the subscriber has seen the marker
		defer m.listeningOnce.Do(func() { close(m.listening) })
	}

	defer func() {
		if r := recover(); r != nil {
			m.metrics.SubscriberError(m.eventType)
			m.log.Error("subscriber panicked", slog.Any("recovered", r), slog.String("event", fmt.Sprintf("%T", ev)))
		}
	}()

	if err := m.sub.OnEmit(ctx, ev); err != nil {
		m.metrics.SubscriberError(m.eventType)
		m.log.Error("subscriber failed", slog.Any("error", err), slog.String("event", fmt.Sprintf("%T", ev)))
	}
}
