package kv

import "log/slog"

type (
	valueOption[T any] struct{ v T }

	storeOpts[T any] struct {
		log           *slog.Logger
		patchModifier PatchModifier
		onUpdate      []UpdateHandler[T]
		onDelete      []DeleteHandler
		onFailure     []FailureHandler
	}

	Option[T any] interface{ applyToStore(*storeOpts[T]) }

	logOption[T any]           valueOption[*slog.Logger]
	patchModifierOption[T any] valueOption[PatchModifier]
	onUpdateOption[T any]      valueOption[UpdateHandler[T]]
	onDeleteOption[T any]      valueOption[DeleteHandler]
	onFailureOption[T any]     valueOption[FailureHandler]
)

func WithLog[T any](l *slog.Logger) Option[T] { return logOption[T]{v: l} }

// WithPatchModifier installs a hook that rewrites partial documents.
func WithPatchModifier[T any](m PatchModifier) Option[T] { return patchModifierOption[T]{v: m} }

// OnUpdate registers a handler called after a Put or Patch has been applied.
func OnUpdate[T any](h UpdateHandler[T]) Option[T] { return onUpdateOption[T]{v: h} }

// OnDelete registers a handler called after a Delete has been applied.
func OnDelete[T any](h DeleteHandler) Option[T] { return onDeleteOption[T]{v: h} }

// OnFailure registers a handler called when a Put, Patch or Delete failed.
func OnFailure[T any](h FailureHandler) Option[T] { return onFailureOption[T]{v: h} }

func (o logOption[T]) applyToStore(s *storeOpts[T])           { s.log = o.v }
func (o patchModifierOption[T]) applyToStore(s *storeOpts[T]) { s.patchModifier = o.v }
func (o onUpdateOption[T]) applyToStore(s *storeOpts[T])      { s.onUpdate = append(s.onUpdate, o.v) }
func (o onDeleteOption[T]) applyToStore(s *storeOpts[T])      { s.onDelete = append(s.onDelete, o.v) }
func (o onFailureOption[T]) applyToStore(s *storeOpts[T])     { s.onFailure = append(s.onFailure, o.v) }
