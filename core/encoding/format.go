package encoding

import (
	"fmt"
	"strings"

	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/internal/codec"
)

// Format tags the serialization of an event payload.
type Format string

const (
	JSON Format = "JSON"
	YAML Format = "YAML"
	// UNKNOWN marks a payload that carries no value.
	UNKNOWN Format = "UNKNOWN"
)

// ParseFormat parses a format tag case-insensitively. YML is accepted for
// YAML; an empty tag or "null" is UNKNOWN.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JSON":
		return JSON, nil
	case "YAML", "YML":
		return YAML, nil
	case "", "NULL", "UNKNOWN":
		return UNKNOWN, nil
	}
	return "", fmt.Errorf("%w: %q", es.ErrUnknownFormat, s)
}

func (f Format) String() string { return string(f) }

func (f Format) codec() (codec.Codec, error) {
	switch f {
	case JSON:
		return codec.JSONCodec{}, nil
	case YAML:
		return codec.YAMLCodec{}, nil
	}
	return nil, fmt.Errorf("%w: no codec for %s", es.ErrUnknownFormat, f)
}
