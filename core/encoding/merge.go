package encoding

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/internal/codec"
)

// Merge layers patch over base as a JSON merge patch (RFC 7386): objects
// merge recursively by key, arrays and scalars replace the base value and an
// explicit nil removes the key. Neither argument is modified.
func Merge(base, patch map[string]any) (map[string]any, error) {
	if patch == nil {
		return cloneTree(base)
	}
	if base == nil {
		base = map[string]any{}
	}

	baseDoc, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("%w: merge base: %w", es.ErrEncode, err)
	}
	patchDoc, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: merge patch: %w", es.ErrEncode, err)
	}
	merged, err := jsonpatch.MergePatch(baseDoc, patchDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: merge: %w", es.ErrDecode, err)
	}
	return decodeTree(merged)
}

// MergeAll merges the given trees from low to high precedence.
func MergeAll(trees ...map[string]any) (map[string]any, error) {
	var (
		out = map[string]any{}
		err error
	)
	for _, t := range trees {
		if out, err = Merge(out, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func cloneTree(t map[string]any) (map[string]any, error) {
	if t == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrEncode, err)
	}
	return decodeTree(b)
}

func decodeTree(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := (codec.JSONCodec{}).Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", es.ErrDecode, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
