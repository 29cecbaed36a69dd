// Package registry maps entity type tags to the factories that create their
// schema defaults.
//
// A Registry is closed: it is assembled once with a Builder at startup and
// never changes afterwards. Lookups of tags that were not registered fail
// with es.ErrUnknownType.
package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/internal/reflector"
)

// Factory creates the schema default of an entity type.
type Factory[V any] func() V

// Tag is the canonical name of an entity type and subtype, e.g.
// "providers/sql". Subtype segments are case-insensitive.
func Tag(entityType string, subtype ...string) string {
	segs := make([]string, 0, len(subtype)+1)
	segs = append(segs, entityType)
	for _, s := range subtype {
		segs = append(segs, strings.ToLower(s))
	}
	return strings.Join(segs, es.IdentifierSeparator)
}

type entry[V any] struct {
	entityType string
	subtype    []string
	factory    Factory[V]
}

type Registry[V any] struct {
	entries map[string]entry[V]
	// typeTags maps the name of a factory's result type to its tags.
	typeTags map[string][]string
	aliases  map[string]encoding.KeyPathAlias
}

// Factory returns the factory for entityType and subtype. Without an exact
// match the closest registered ancestor is used.
func (r *Registry[V]) Factory(entityType string, subtype ...string) (Factory[V], error) {
	for n := len(subtype); n >= 0; n-- {
		if e, ok := r.entries[Tag(entityType, subtype[:n]...)]; ok {
			return e.factory, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", es.ErrUnknownType, Tag(entityType, subtype...))
}

// New creates the schema default for entityType and subtype.
func (r *Registry[V]) New(entityType string, subtype ...string) (V, error) {
	f, err := r.Factory(entityType, subtype...)
	if err != nil {
		var zero V
		return zero, err
	}
	return f(), nil
}

// DefaultTree returns the schema default for entityType and subtype as a tree.
func (r *Registry[V]) DefaultTree(entityType string, subtype []string) (map[string]any, error) {
	v, err := r.New(entityType, subtype...)
	if err != nil {
		return nil, err
	}
	return encoding.ToTree(v)
}

func (r *Registry[V]) Has(entityType string, subtype ...string) bool {
	_, ok := r.entries[Tag(entityType, subtype...)]
	return ok
}

// SplitSubType splits segments into the longest registered subtype of
// entityType and the remaining segments. The subtype is returned in the
// lower case it is registered in.
func (r *Registry[V]) SplitSubType(entityType string, segments []string) (subtype, rest []string) {
	for n := len(segments); n > 0; n-- {
		if e, ok := r.entries[Tag(entityType, segments[:n]...)]; ok {
			return slices.Clone(e.subtype), slices.Clone(segments[n:])
		}
	}
	return nil, slices.Clone(segments)
}

// SubTypes returns every registered subtype of entityType that descends
// from subtype, in tag order. subtype itself is not included.
func (r *Registry[V]) SubTypes(entityType string, subtype []string) [][]string {
	prefix := Tag(entityType, subtype...) + es.IdentifierSeparator
	var out [][]string
	for _, tag := range r.Tags() {
		if strings.HasPrefix(tag, prefix) {
			out = append(out, slices.Clone(r.entries[tag].subtype))
		}
	}
	return out
}

// KeyPathAlias returns the alias registered for a key path segment.
func (r *Registry[V]) KeyPathAlias(segment string) (encoding.KeyPathAlias, bool) {
	a, ok := r.aliases[segment]
	return a, ok
}

// TagOf returns the tag whose factory produces values of the dynamic type of
// v. It fails if no tag or more than one tag does.
func (r *Registry[V]) TagOf(v V) (string, error) {
	name := reflector.TypeInfoOf(v).Name
	tags := r.typeTags[name]
	switch len(tags) {
	case 0:
		return "", fmt.Errorf("%w: no tag for %s", es.ErrUnknownType, name)
	case 1:
		return tags[0], nil
	}
	return "", fmt.Errorf("%w: %s is registered as %s", es.ErrInvalidArgument, name, strings.Join(tags, ", "))
}

// Tags returns all registered tags in sorted order.
func (r *Registry[V]) Tags() []string {
	tags := make([]string, 0, len(r.entries))
	for tag := range r.entries {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
