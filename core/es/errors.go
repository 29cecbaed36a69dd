package es

import "errors"

var (
	// ErrEncode is returned when a value cannot be serialized. Fatal to the push.
	ErrEncode = errors.New("encode failed")
	// ErrDecode is returned when a payload cannot be materialized into a value.
	ErrDecode = errors.New("decode failed")
	// ErrValidation is returned when a decoded value fails a registered check.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a lookup target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed requests, e.g. a patch on
	// an identifier that has no value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreRejected is returned when the event store refuses an append.
	ErrStoreRejected = errors.New("store rejected event")
	// ErrUnknownFormat is returned for payload format tags that are not supported.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrUnknownType is returned by registries for unregistered type tags.
	ErrUnknownType = errors.New("unknown type")
	// ErrClosed is returned after a component has been shut down.
	ErrClosed = errors.New("closed")
)
