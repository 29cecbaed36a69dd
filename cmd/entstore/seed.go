package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/internal/codec"
)

// seedEvent is one entry of a seed file. An entry carries either a raw
// payload in format or a value, which is stored as JSON.
type seedEvent struct {
	Type       string         `json:"type"`
	Identifier string         `json:"identifier"`
	Format     string         `json:"format,omitempty"`
	Payload    string         `json:"payload,omitempty"`
	Value      map[string]any `json:"value,omitempty"`
	Deleted    bool           `json:"deleted,omitempty"`
}

func loadSeed(path string) ([]es.ReplayEvent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed(b)
}

func parseSeed(b []byte) ([]es.ReplayEvent, error) {
	var entries []seedEvent
	if err := (codec.YAMLCodec{}).Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	events := make([]es.ReplayEvent, 0, len(entries))
	for i, e := range entries {
		ev, err := e.event()
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		events = append(events, es.ReplayEvent{MutationEvent: ev})
	}
	return events, nil
}

func (e seedEvent) event() (es.MutationEvent, error) {
	id, err := es.ParseIdentifier(e.Identifier)
	if err != nil {
		return es.MutationEvent{}, err
	}

	var (
		payload []byte
		format  = encoding.YAML
	)
	switch {
	case e.Value != nil && e.Payload != "":
		return es.MutationEvent{}, fmt.Errorf("%w: %s has both value and payload", es.ErrInvalidArgument, id)
	case e.Value != nil:
		format = encoding.JSON
		if payload, err = json.Marshal(e.Value); err != nil {
			return es.MutationEvent{}, err
		}
	default:
		if e.Format != "" {
			if format, err = encoding.ParseFormat(e.Format); err != nil {
				return es.MutationEvent{}, err
			}
		}
		payload = []byte(e.Payload)
	}

	ev := es.NewMutationEvent(e.Type, id, payload, string(format))
	ev.Deleted = e.Deleted
	return ev, ev.Validate()
}
