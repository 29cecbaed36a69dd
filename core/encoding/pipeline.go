package encoding

import (
	"fmt"
	"os"
	"regexp"

	"github.com/codewandler/entstore/core/es"
)

type (
	// PreProcessor rewrites a raw payload before it is parsed.
	PreProcessor interface {
		PreProcess(payload []byte, format Format) ([]byte, error)
	}

	PreProcessorFunc func(payload []byte, format Format) ([]byte, error)

	// DecodeContext describes the event a tree was decoded from.
	DecodeContext struct {
		Identifier es.Identifier
		Format     Format
		// Mutation is true for live events and false for replayed ones.
		Mutation bool
	}

	// Middleware rewrites the decoded tree before it is materialized. The
	// returned tree is handed to the next middleware.
	Middleware func(ctx DecodeContext, tree map[string]any) (map[string]any, error)
)

func (f PreProcessorFunc) PreProcess(payload []byte, format Format) ([]byte, error) {
	return f(payload, format)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// EnvSubstitution replaces ${NAME} and ${NAME:-fallback} in payloads with the
// value lookup returns for NAME. Unset variables without fallback are left as
// they are. A nil lookup uses os.LookupEnv.
func EnvSubstitution(lookup func(string) (string, bool)) PreProcessor {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return PreProcessorFunc(func(payload []byte, _ Format) ([]byte, error) {
		return envPattern.ReplaceAllFunc(payload, func(m []byte) []byte {
			groups := envPattern.FindSubmatch(m)
			if v, ok := lookup(string(groups[1])); ok {
				return []byte(v)
			}
			if groups[2] != nil {
				return groups[2]
			}
			return m
		}), nil
	})
}

// Layer configures LayerOver.
type Layer struct {
	// Cache returns the currently cached tree at an identifier.
	Cache func(id es.Identifier) (map[string]any, bool)
	// IgnoreCacheOnMutation skips the cache for live events, so they replace
	// the value instead of patching it.
	IgnoreCacheOnMutation bool
	// Fallback provides the base tree if the cache has none.
	Fallback func(id es.Identifier) (map[string]any, error)
}

// LayerOver returns a middleware that merges the decoded tree onto a base
// tree, see Merge.
func LayerOver(l Layer) Middleware {
	return func(ctx DecodeContext, tree map[string]any) (map[string]any, error) {
		base, err := l.base(ctx)
		if err != nil {
			return nil, err
		}
		if base == nil {
			return tree, nil
		}
		return Merge(base, tree)
	}
}

func (l Layer) base(ctx DecodeContext) (map[string]any, error) {
	if l.Cache != nil && !(ctx.Mutation && l.IgnoreCacheOnMutation) {
		if cached, ok := l.Cache(ctx.Identifier); ok {
			return cached, nil
		}
	}
	if l.Fallback == nil {
		return nil, nil
	}
	base, err := l.Fallback(ctx.Identifier)
	if err != nil {
		return nil, fmt.Errorf("base for %s: %w", ctx.Identifier, err)
	}
	return base, nil
}
