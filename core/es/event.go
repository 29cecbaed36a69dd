package es

import (
	"fmt"
	"log/slog"
	"slices"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Event is the closed set of events exchanged between an EventStore and its
// subscribers: MutationEvent, ReplayEvent, StateChangeEvent and ReloadEvent.
type Event interface {
	// EventType is the name of the stream the event travels on.
	EventType() string
	isEvent()
}

// EntityEvent is implemented by events that carry a value for one identifier.
type EntityEvent interface {
	Event
	Mutation() MutationEvent
}

// MutationEvent is a single committed change at one identifier.
type MutationEvent struct {
	// ID is unique per pushed event. Transports may use it for de-duplication.
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Identifier Identifier `json:"identifier"`
	Payload    []byte     `json:"payload,omitempty"`
	// Format is the payload format tag, see encoding.ParseFormat.
	Format  string `json:"format,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func NewMutationEvent(eventType string, id Identifier, payload []byte, format string) MutationEvent {
	return MutationEvent{
		ID:         gonanoid.Must(),
		Type:       eventType,
		Identifier: id,
		Payload:    payload,
		Format:     format,
	}
}

func (e MutationEvent) EventType() string       { return e.Type }
func (e MutationEvent) Mutation() MutationEvent { return e }
func (MutationEvent) isEvent()                  {}

// WithIdentifier returns a copy of the event addressed to id.
func (e MutationEvent) WithIdentifier(id Identifier) MutationEvent {
	e.Identifier = id
	return e
}

// WithPayload returns a copy of the event carrying payload.
func (e MutationEvent) WithPayload(payload []byte) MutationEvent {
	e.Payload = payload
	return e
}

func (e MutationEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is empty")
	}
	if e.Identifier.ID() == "" {
		return fmt.Errorf("event identifier is empty")
	}
	return e.Identifier.Validate()
}

func (e MutationEvent) SlogAttr() slog.Attr {
	return slog.Group(
		"event",
		slog.String("id", e.ID),
		slog.String("type", e.Type),
		e.Identifier.SlogAttr(),
		slog.String("format", e.Format),
		slog.Bool("deleted", e.Deleted),
	)
}

// ReplayEvent is a historical event delivered during startup replay.
type ReplayEvent struct {
	MutationEvent
	// AdditionalLocation names the backing location the event was read from, if
	// it was not the primary one.
	AdditionalLocation string `json:"additional_location,omitempty"`
}

func (e ReplayEvent) Mutation() MutationEvent { return e.MutationEvent }

// WithIdentifier returns a copy of the replay event addressed to id.
func (e ReplayEvent) WithIdentifier(id Identifier) ReplayEvent {
	e.MutationEvent.Identifier = id
	return e
}

// State is the lifecycle state of a per-type stream.
type State string

const (
	StateReplaying State = "REPLAYING"
	StateListening State = "LISTENING"
)

// StateChangeEvent marks the transition of a stream from replay to live delivery.
type StateChangeEvent struct {
	Type  string
	State State
}

func (e StateChangeEvent) EventType() string { return e.Type }
func (StateChangeEvent) isEvent()            {}

// Wildcard matches any entity type or id in an EventFilter.
const Wildcard = "*"

// EventFilter selects cached entries by entity type (first path segment) and id.
type EventFilter struct {
	EntityTypes []string `json:"entity_types"`
	IDs         []string `json:"ids"`
}

// Matches reports whether id is selected by the filter.
func (f EventFilter) Matches(id Identifier) bool {
	if !slices.Contains(f.EntityTypes, Wildcard) {
		if id.PathLen() == 0 || !slices.Contains(f.EntityTypes, id.First()) {
			return false
		}
	}
	return slices.Contains(f.IDs, Wildcard) || slices.Contains(f.IDs, id.ID())
}

// ReloadEvent requests recomputation of all cached entries matched by Filter.
type ReloadEvent struct {
	Type   string      `json:"type"`
	Filter EventFilter `json:"filter"`
}

func (e ReloadEvent) EventType() string { return e.Type }
func (ReloadEvent) isEvent()            {}

var (
	_ EntityEvent = MutationEvent{}
	_ EntityEvent = ReplayEvent{}
	_ Event       = StateChangeEvent{}
	_ Event       = ReloadEvent{}
)
