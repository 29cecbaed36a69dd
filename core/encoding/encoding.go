// Package encoding turns typed values into event payloads and back.
//
// Payloads are decoded into an untyped tree first. The tree passes through
// the configured middlewares, which may layer it over a cached or default
// tree, and is then materialized into the target type.
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/internal/codec"
)

// Encoding serializes and deserializes values of T. It is safe for
// concurrent use as long as its middlewares are.
type Encoding[T any] struct {
	log           *slog.Logger
	format        Format
	newValue      func() T
	preProcessors []PreProcessor
	middlewares   []Middleware
}

// New creates an encoding. newValue returns the value a payload is decoded
// into; it may be pre-populated. A nil newValue starts from the zero value.
func New[T any](newValue func() T, opts ...Option) *Encoding[T] {
	options := encodingOpts{format: JSON, log: slog.Default()}
	for _, opt := range opts {
		opt.applyToEncoding(&options)
	}
	if newValue == nil {
		newValue = func() T { return *new(T) }
	}
	return &Encoding[T]{
		log:           options.log.With(slog.String("component", "encoding")),
		format:        options.format,
		newValue:      newValue,
		preProcessors: options.preProcessors,
		middlewares:   options.middlewares,
	}
}

func (e *Encoding[T]) DefaultFormat() string { return e.format.String() }

func (e *Encoding[T]) HasValue(format string) (bool, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return false, err
	}
	return f != UNKNOWN, nil
}

// IsEmpty reports whether payload holds nothing or only a null document.
func (e *Encoding[T]) IsEmpty(payload []byte) bool {
	p := bytes.TrimSpace(payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null")) || bytes.Equal(p, []byte("~"))
}

func (e *Encoding[T]) Serialize(v T) ([]byte, error) {
	if e.format == JSON {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
		}
		return b, nil
	}
	tree, err := ToTree(v)
	if err != nil {
		return nil, err
	}
	return e.SerializeMap(tree)
}

func (e *Encoding[T]) SerializeMap(m map[string]any) ([]byte, error) {
	c, err := e.format.codec()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
	}
	b, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
	}
	return b, nil
}

// Deserialize decodes payload into a T. ok is false for empty payloads and
// for the UNKNOWN format.
func (e *Encoding[T]) Deserialize(id es.Identifier, payload []byte, format string, mutation bool) (v T, ok bool, err error) {
	f, err := ParseFormat(format)
	if err != nil {
		return v, false, err
	}
	if f == UNKNOWN || e.IsEmpty(payload) {
		return v, false, nil
	}

	tree, err := e.DecodeTree(id, payload, f, mutation)
	if err != nil {
		return v, false, err
	}
	if tree == nil {
		return v, false, nil
	}
	v, err = e.Materialize(tree)
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", id, err)
	}
	return v, true, nil
}

// DecodeTree runs the pre-processors, parses payload and runs the
// middlewares. A null document yields a nil tree.
func (e *Encoding[T]) DecodeTree(id es.Identifier, payload []byte, f Format, mutation bool) (map[string]any, error) {
	var err error
	for _, p := range e.preProcessors {
		if payload, err = p.PreProcess(payload, f); err != nil {
			return nil, fmt.Errorf("%w: pre-process %s: %w", es.ErrDecode, id, err)
		}
	}

	tree, err := parseTree(payload, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	if tree == nil {
		return nil, nil
	}

	ctx := DecodeContext{Identifier: id, Format: f, Mutation: mutation}
	for _, m := range e.middlewares {
		if tree, err = m(ctx, tree); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", es.ErrDecode, id, err)
		}
	}
	return tree, nil
}

// Materialize converts a tree into a T, starting from newValue.
func (e *Encoding[T]) Materialize(tree map[string]any) (T, error) {
	v := e.newValue()
	b, err := json.Marshal(tree)
	if err != nil {
		return v, fmt.Errorf("%w: %w", es.ErrDecode, err)
	}
	if err := (codec.JSONCodec{}).Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %w", es.ErrDecode, err)
	}
	return v, nil
}

// KeyPathAlias replaces the innermost level of a nested payload. It receives
// the value found at the last key path segment and returns the map to put in
// place of {segment: value}.
type KeyPathAlias func(value map[string]any) map[string]any

// NestPayload wraps payload so that, merged onto a document, it lands at
// keyPath. The result is written in the same format.
func (e *Encoding[T]) NestPayload(payload []byte, format string, keyPath []string, alias KeyPathAlias) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if len(keyPath) == 0 || f == UNKNOWN {
		return payload, nil
	}
	tree, err := parseTree(payload, f)
	if err != nil {
		return nil, err
	}

	last := len(keyPath) - 1
	var nested map[string]any
	if alias != nil {
		nested = alias(tree)
	} else {
		nested = map[string]any{keyPath[last]: tree}
	}
	for i := last - 1; i >= 0; i-- {
		nested = map[string]any{keyPath[i]: nested}
	}

	c, err := f.codec()
	if err != nil {
		return nil, err
	}
	out, err := c.Marshal(nested)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
	}
	return out, nil
}

// ToTree converts a value into an untyped tree via its JSON form.
func ToTree(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
	}
	tree, err := decodeTree(b)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

func parseTree(payload []byte, f Format) (map[string]any, error) {
	c, err := f.codec()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := c.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrDecode, err)
	}
	switch d := doc.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return d, nil
	}
	return nil, fmt.Errorf("%w: expected a document, got %T", es.ErrDecode, doc)
}

var _ es.Codec[any] = (*Encoding[any])(nil)
