package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/internal/reflector"
)

// Builder assembles a Registry. Registration errors are collected and
// reported by Build.
type Builder[V any] struct {
	r    *Registry[V]
	errs []error
}

func NewBuilder[V any]() *Builder[V] {
	return &Builder[V]{r: &Registry[V]{
		entries:  map[string]entry[V]{},
		typeTags: map[string][]string{},
		aliases:  map[string]encoding.KeyPathAlias{},
	}}
}

// Register binds a factory to an entity type and optional subtype path.
func (b *Builder[V]) Register(factory Factory[V], entityType string, subtype ...string) *Builder[V] {
	tag := Tag(entityType, subtype...)
	switch {
	case entityType == "" || slices.Contains(subtype, ""):
		b.errs = append(b.errs, fmt.Errorf("invalid tag %q", tag))
		return b
	case factory == nil:
		b.errs = append(b.errs, fmt.Errorf("nil factory for %s", tag))
		return b
	}
	if _, ok := b.r.entries[tag]; ok {
		b.errs = append(b.errs, fmt.Errorf("duplicate registration of %s", tag))
		return b
	}

	lowered := make([]string, len(subtype))
	for i, s := range subtype {
		lowered[i] = strings.ToLower(s)
	}
	b.r.entries[tag] = entry[V]{entityType: entityType, subtype: lowered, factory: factory}
	if ti := reflector.TypeInfoOf(factory()); !ti.IsZero() {
		b.r.typeTags[ti.Name] = append(b.r.typeTags[ti.Name], tag)
	}
	return b
}

// Alias registers a key path alias for a segment.
func (b *Builder[V]) Alias(segment string, alias encoding.KeyPathAlias) *Builder[V] {
	if segment == "" || alias == nil {
		b.errs = append(b.errs, fmt.Errorf("invalid alias for %q", segment))
		return b
	}
	b.r.aliases[segment] = alias
	return b
}

// Build returns the registry. The builder must not be used afterwards.
func (b *Builder[V]) Build() (*Registry[V], error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r := b.r
	b.r = nil
	return r, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder[V]) MustBuild() *Registry[V] {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
