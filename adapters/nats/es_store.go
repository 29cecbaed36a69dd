package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/entstore/core/es"
)

const (
	defaultSubjectPrefix = "entstore"
	defaultStreamName    = "ENTSTORE"
	defaultFetchWait     = time.Second
	replayBatchSize      = 256

	headerEventType = "x-event-type"
	headerEventID   = "x-event-id"
)

type EventStoreConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	Metrics       es.Metrics   // Metrics of the subscription broker (optional)
	SubjectPrefix string       // SubjectPrefix is the prefix of the event and reload subjects
	StreamName    string
	Storage       jetstream.StorageType
	MaxAge        time.Duration // MaxAge limits the age of stored events, 0 keeps them forever
	Duplicates    time.Duration // Duplicates is the de-duplication window for event ids
}

// EventStore is an es.EventStore backed by a JetStream stream. Every event
// type is stored on its own subject below <prefix>.events. Start replays the
// stream to the subscribers and then follows it; events are delivered only
// once they have been read back from the stream, so all instances sharing a
// stream observe the same order per event type.
type EventStore struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subs          *es.Subscriptions
	subjectPrefix string
	streamName    string

	started atomic.Bool
	mu      sync.Mutex
	live    jetstream.ConsumeContext
	reload  *natsgo.Subscription
}

func NewEventStore(cfg EventStoreConfig) (*EventStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subjectPrefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	stream, streamInfo, err := ensureStream(js, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".events.>"},
		Storage:    cfg.Storage,
		MaxAge:     cfg.MaxAge,
		Duplicates: cfg.Duplicates,
		FirstSeq:   1,
	})
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log.Debug("ensured", slog.Uint64("last_seq", streamInfo.State.LastSeq), slog.Uint64("messages", streamInfo.State.Msgs))

	return &EventStore{
		nc:            nc,
		closeNc:       closeNatsCon,
		js:            js,
		stream:        stream,
		log:           log,
		subs:          es.NewSubscriptions(es.WithLog(cfg.Log), es.WithMetrics(cfg.Metrics)),
		subjectPrefix: subjectPrefix,
		streamName:    streamName,
	}, nil
}

func (e *EventStore) Subscribe(sub es.Subscriber) { e.subs.AddSubscriber(sub) }

// Start replays the stream up to its current end as ReplayEvents, switches
// every event type to listening and then follows the stream. It also starts
// listening for reload requests. Start may be called once.
func (e *EventStore) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: event store already started", es.ErrInvalidArgument)
	}

	si, err := e.stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("stream info: %w", err)
	}
	endSeq := si.State.LastSeq

	startAt := time.Now()
	replayed, err := e.replay(ctx, endSeq)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	e.log.Info("replayed", slog.Int("events", replayed), slog.Uint64("end_seq", endSeq), slog.Duration("duration", time.Since(startAt)))

	e.subs.StartListening()

	consumerCfg := jetstream.OrderedConsumerConfig{DeliverPolicy: jetstream.DeliverAllPolicy}
	if endSeq > 0 {
		consumerCfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerCfg.OptStartSeq = endSeq + 1
	}
	cons, err := e.stream.OrderedConsumer(ctx, consumerCfg)
	if err != nil {
		return fmt.Errorf("live consumer: %w", err)
	}
	live, err := cons.Consume(e.onLiveMsg)
	if err != nil {
		return fmt.Errorf("live consumer: %w", err)
	}

	reload, err := e.nc.Subscribe(e.reloadSubject(), e.onReloadMsg)
	if err != nil {
		live.Stop()
		return fmt.Errorf("reload subscription: %w", err)
	}

	e.mu.Lock()
	e.live, e.reload = live, reload
	e.mu.Unlock()
	return nil
}

// replay emits every event up to endSeq as a ReplayEvent.
func (e *EventStore) replay(ctx context.Context, endSeq uint64) (count int, err error) {
	if endSeq == 0 {
		return 0, nil
	}

	cons, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return 0, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		mb, err := cons.Fetch(replayBatchSize, jetstream.FetchMaxWait(defaultFetchWait))
		if err != nil {
			return count, err
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			ev, seq, err := e.decodeMsg(msg)
			if err != nil {
				e.log.Error("skipping undecodable event", slog.Any("error", err))
			} else if err := e.subs.EmitEvent(es.ReplayEvent{MutationEvent: ev}); err != nil {
				return count, err
			} else {
				count++
			}
			if seq >= endSeq {
				return count, nil
			}
		}
		if err := mb.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) && !errors.Is(err, natsgo.ErrTimeout) {
			return count, err
		}
		if empty {
			// the tail of the stream was removed while replaying
			return count, nil
		}
	}
}

func (e *EventStore) onLiveMsg(msg jetstream.Msg) {
	ev, _, err := e.decodeMsg(msg)
	if err != nil {
		e.log.Error("skipping undecodable event", slog.Any("error", err))
		return
	}
	if err := e.subs.EmitEvent(ev); err != nil {
		e.log.Error("failed to emit event", ev.SlogAttr(), slog.Any("error", err))
	}
}

func (e *EventStore) onReloadMsg(msg *natsgo.Msg) {
	var ev es.ReloadEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		e.log.Error("invalid reload request", slog.Any("error", err))
		return
	}
	if err := e.subs.EmitEvent(ev); err != nil {
		e.log.Error("failed to emit reload", slog.String("type", ev.Type), slog.Any("error", err))
	}
}

// Push appends ev to the stream and waits for the acknowledgement. The event
// reaches subscribers when it is read back from the stream.
func (e *EventStore) Push(ctx context.Context, ev es.MutationEvent) (err error) {
	if err = ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", es.ErrStoreRejected, err)
	}
	if err = validSubjectToken(ev.Type); err != nil {
		return fmt.Errorf("%w: %w", es.ErrStoreRejected, err)
	}

	msg := natsgo.NewMsg(e.subjectForType(ev.Type))
	msg.Header.Set(headerEventType, ev.Type)
	msg.Header.Set(headerEventID, ev.ID)
	msg.Data, err = json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", es.ErrStoreRejected, err)
	}

	ack, err := e.js.PublishMsg(ctx, msg, jetstream.WithMsgID(ev.ID))
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %w", es.ErrStoreRejected, msg.Subject, err)
	}
	e.log.Debug("append", ev.SlogAttr(), slog.Uint64("seq", ack.Sequence), slog.Bool("duplicate", ack.Duplicate))
	return nil
}

// Reload broadcasts a reload request to every instance listening on the
// stream, this one included.
func (e *EventStore) Reload(eventType string, filter es.EventFilter) error {
	data, err := json.Marshal(es.ReloadEvent{Type: eventType, Filter: filter})
	if err != nil {
		return err
	}
	return e.nc.Publish(e.reloadSubject(), data)
}

func (e *EventStore) Close() error {
	e.mu.Lock()
	if e.live != nil {
		e.live.Stop()
	}
	if e.reload != nil {
		_ = e.reload.Unsubscribe()
	}
	e.mu.Unlock()

	e.subs.Close()
	e.js.CleanupPublisher()
	e.closeNc()
	e.log.Debug("closed event store")
	return nil
}

var _ es.EventStore = (*EventStore)(nil)

func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig) (s jetstream.Stream, si *jetstream.StreamInfo, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err = js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	si, err = s.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, si, nil
}

func (e *EventStore) decodeMsg(msg jetstream.Msg) (ev es.MutationEvent, seq uint64, err error) {
	md, err := msg.Metadata()
	if err != nil {
		return ev, 0, err
	}
	seq = md.Sequence.Stream
	if err = json.Unmarshal(msg.Data(), &ev); err != nil {
		return ev, seq, fmt.Errorf("seq %d: %w", seq, err)
	}
	return ev, seq, nil
}

// --- helpers ---

func (e *EventStore) subjectForType(eventType string) string {
	return e.subjectPrefix + ".events." + eventType
}

func (e *EventStore) reloadSubject() string { return e.subjectPrefix + ".reload" }

func validSubjectToken(s string) error {
	if s == "" || strings.ContainsAny(s, ".*> \t\r\n") {
		return fmt.Errorf("event type %q is not a valid subject token", s)
	}
	return nil
}
