package encoding

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		base  map[string]any
		patch map[string]any
		want  map[string]any
	}{
		{
			name:  "objects merge recursively",
			base:  map[string]any{"a": map[string]any{"b": 1, "c": 1}},
			patch: map[string]any{"a": map[string]any{"c": 2}},
			want:  map[string]any{"a": map[string]any{"b": json.Number("1"), "c": json.Number("2")}},
		},
		{
			name:  "lists are replaced",
			base:  map[string]any{"list": []any{1, 2}},
			patch: map[string]any{"list": []any{2}},
			want:  map[string]any{"list": []any{json.Number("2")}},
		},
		{
			name:  "scalars are replaced",
			base:  map[string]any{"label": "old", "enabled": false},
			patch: map[string]any{"label": "new"},
			want:  map[string]any{"label": "new", "enabled": false},
		},
		{
			name:  "null removes a key",
			base:  map[string]any{"label": "old", "enabled": false},
			patch: map[string]any{"label": nil},
			want:  map[string]any{"enabled": false},
		},
		{
			name:  "empty base",
			patch: map[string]any{"label": "new"},
			want:  map[string]any{"label": "new"},
		},
		{
			name: "nil patch",
			base: map[string]any{"label": "old"},
			want: map[string]any{"label": "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.base, tt.patch)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_DoesNotModifyArguments(t *testing.T) {
	base := map[string]any{"a": map[string]any{"b": 1}}
	patch := map[string]any{"a": map[string]any{"c": 2}}

	_, err := Merge(base, patch)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, base)
	require.Equal(t, map[string]any{"a": map[string]any{"c": 2}}, patch)
}

func TestMergeAll(t *testing.T) {
	got, err := MergeAll(
		map[string]any{"enabled": false, "label": "schema"},
		nil,
		map[string]any{"enabled": true},
		map[string]any{"label": "instance"},
	)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"enabled": true, "label": "instance"}, got)
}
