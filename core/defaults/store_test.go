package defaults_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/entstore/core/defaults"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/registry"
)

type provider struct {
	Type    string         `json:"type"`
	Enabled bool           `json:"enabled"`
	Caching map[string]any `json:"caching,omitempty"`
}

func testSchemas(t *testing.T) *registry.Registry[provider] {
	t.Helper()
	return registry.NewBuilder[provider]().
		Register(func() provider { return provider{} }, "providers").
		Register(func() provider { return provider{Type: "sql"} }, "providers", "my-subtype").
		Register(func() provider { return provider{Type: "sql-gpkg"} }, "providers", "my-subtype", "gpkg").
		Register(func() provider { return provider{Type: "wfs"} }, "providers", "wfs").
		Alias("oas30", func(v map[string]any) map[string]any {
			return map[string]any{"api": []any{v}}
		}).
		MustBuild()
}

func declare(id es.Identifier, payload string) es.ReplayEvent {
	return es.ReplayEvent{MutationEvent: es.NewMutationEvent(defaults.EventType, id, []byte(payload), "JSON")}
}

func newDefaults(t *testing.T, history ...es.ReplayEvent) *defaults.Store {
	t.Helper()
	s := defaults.New(es.NewTestStore(t, history...), testSchemas(t))
	t.Cleanup(s.Close)
	es.AwaitStarted(t, s)
	return s
}

func TestParsePath(t *testing.T) {
	schemas := testSchemas(t)
	for in, want := range map[string]defaults.Path{
		"providers":                     {EntityType: "providers"},
		"providers/my-subtype":          {EntityType: "providers", SubType: []string{"my-subtype"}},
		"providers/my-subtype/gpkg/x":   {EntityType: "providers", SubType: []string{"my-subtype", "gpkg"}, KeyPath: []string{"x"}},
		"providers/caching":             {EntityType: "providers", KeyPath: []string{"caching"}},
		"providers/My-Subtype/Gpkg/X":   {EntityType: "providers", SubType: []string{"my-subtype", "gpkg"}, KeyPath: []string{"X"}},
		"providers/my-subtype/defaults": {EntityType: "providers", SubType: []string{"my-subtype"}},
		"services/api/oas30":            {EntityType: "services", KeyPath: []string{"api", "oas30"}},
	} {
		id, err := es.ParseIdentifier(in)
		require.NoError(t, err)
		got, err := defaults.ParsePath(id, schemas)
		require.NoError(t, err, in)
		if len(want.SubType) == 0 {
			require.Empty(t, got.SubType, in)
			got.SubType = nil
		}
		if len(want.KeyPath) == 0 {
			require.Empty(t, got.KeyPath, in)
			got.KeyPath = nil
		}
		require.Equal(t, want, got, in)
	}
}

func TestStore_TypeDefaultsReachSubtypes(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("providers"), `{"enabled":true}`))

	for _, key := range []string{"providers/defaults", "providers/my-subtype/defaults", "providers/my-subtype/gpkg/defaults", "providers/wfs/defaults"} {
		id, _ := es.ParseIdentifier(key)
		v, ok := s.Get(id)
		require.True(t, ok, key)
		require.Equal(t, map[string]any{"enabled": true}, v, key)
	}

	got, ok := s.Defaults(es.NewIdentifier("my-id", "providers", "my-subtype"))
	require.True(t, ok)
	require.Equal(t, map[string]any{"enabled": true}, got)
}

func TestStore_SubtypeDefaultsStayBelowSubtype(t *testing.T) {
	s := newDefaults(t,
		declare(es.NewIdentifier("providers"), `{"enabled":true}`),
		declare(es.NewIdentifier("my-subtype", "providers"), `{"enabled":false,"type":"custom"}`),
	)

	v, _ := s.Get(es.NewIdentifier(defaults.CacheID, "providers", "my-subtype", "gpkg"))
	require.Equal(t, map[string]any{"enabled": false, "type": "custom"}, v)

	v, _ = s.Get(es.NewIdentifier(defaults.CacheID, "providers", "wfs"))
	require.Equal(t, map[string]any{"enabled": true}, v)

	v, _ = s.Get(es.NewIdentifier(defaults.CacheID, "providers"))
	require.Equal(t, map[string]any{"enabled": true}, v)
}

func TestStore_KeyPathIsNested(t *testing.T) {
	s := newDefaults(t,
		declare(es.NewIdentifier("wfs", "providers"), `{"enabled":true}`),
		declare(es.NewIdentifier("caching", "providers", "wfs"), `{"ttl":60}`),
		declare(es.NewIdentifier("oas30", "providers", "wfs"), `{"enabled":true}`),
	)

	v, _ := s.Get(es.NewIdentifier(defaults.CacheID, "providers", "wfs"))
	require.Equal(t, map[string]any{
		"enabled": true,
		"caching": map[string]any{"ttl": json.Number("60")},
		"api":     []any{map[string]any{"enabled": true}},
	}, v)
}

func TestStore_EmptyDeclarationIsIgnored(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("providers"), ``))
	require.Empty(t, s.Identifiers())
}

func TestStore_Defaults_WalksUp(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("providers"), `{"enabled":true}`))

	// unregistered subtype falls back to the type
	got, ok := s.Defaults(es.NewIdentifier("my-id", "providers", "unregistered"))
	require.True(t, ok)
	require.Equal(t, map[string]any{"enabled": true}, got)

	_, ok = s.Defaults(es.NewIdentifier("my-id", "services"))
	require.False(t, ok)
	_, ok = s.Defaults(es.NewIdentifier("root"))
	require.False(t, ok)
}

func TestStore_Builder(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("my-subtype", "providers"), `{"enabled":true}`))

	b, err := s.Builder(es.NewIdentifier(defaults.CacheID, "providers", "my-subtype"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"type": "sql", "enabled": true}, b)

	b, err = s.Builder(es.NewIdentifier(defaults.CacheID, "providers", "wfs"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"type": "wfs", "enabled": false}, b)

	_, err = s.Builder(es.NewIdentifier(defaults.CacheID, "codelists"))
	require.ErrorIs(t, err, es.ErrUnknownType)
}

func TestStore_LiveDeclaration(t *testing.T) {
	s := newDefaults(t)

	v, ok := es.AwaitFuture(t, s.Put(t.Context(), es.NewIdentifier("providers"), map[string]any{"enabled": true}))
	require.True(t, ok)
	require.Equal(t, map[string]any{"enabled": true}, v)

	require.Eventually(t, func() bool {
		return s.Has(es.NewIdentifier(defaults.CacheID, "providers", "my-subtype", "gpkg"))
	}, es.TestTimeout, time.Millisecond)

	// later declarations accumulate
	f, err := s.Patch(t.Context(), defaults.CacheID, map[string]any{"type": "patched"}, "providers", "wfs")
	require.NoError(t, err)
	v, _ = es.AwaitFuture(t, f)
	require.Equal(t, map[string]any{"enabled": true, "type": "patched"}, v)
}

func TestStore_EnvSubstitution(t *testing.T) {
	mem := es.NewTestStore(t, declare(es.NewIdentifier("providers"), `{"type":"${PROVIDER_TYPE:-sql}","host":"${DB_HOST}"}`))
	s := defaults.New(mem, testSchemas(t), defaults.WithLookupEnv(func(name string) (string, bool) {
		return "db.internal", name == "DB_HOST"
	}))
	t.Cleanup(s.Close)
	es.AwaitStarted(t, s)

	v, _ := s.Get(es.NewIdentifier(defaults.CacheID, "providers"))
	require.Equal(t, map[string]any{"type": "sql", "host": "db.internal"}, v)
}

func TestStore_PatchCannotRemoveKeys(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("providers"), `{"enabled":true,"caching":{"ttl":5}}`))
	id := es.NewIdentifier(defaults.CacheID, "providers")

	_, err := s.Patch(t.Context(), defaults.CacheID, map[string]any{"caching": nil}, "providers")
	require.ErrorIs(t, err, es.ErrInvalidArgument)
	_, err = s.Patch(t.Context(), defaults.CacheID, map[string]any{"caching": map[string]any{"ttl": nil}}, "providers")
	require.ErrorIs(t, err, es.ErrInvalidArgument)
	require.ErrorContains(t, err, "caching.ttl")

	v, _ := s.Get(id)
	require.Equal(t, map[string]any{"enabled": true, "caching": map[string]any{"ttl": json.Number("5")}}, v)
}

func TestStore_SubtypeCaseIsIgnored(t *testing.T) {
	s := newDefaults(t, declare(es.NewIdentifier("WFS", "providers"), `{"enabled":true}`))

	require.True(t, s.Has(es.NewIdentifier(defaults.CacheID, "providers", "wfs")))
	require.False(t, s.Has(es.NewIdentifier(defaults.CacheID, "providers", "WFS")))

	got, ok := s.Defaults(es.NewIdentifier("my-id", "providers", "WFS"))
	require.True(t, ok)
	require.Equal(t, map[string]any{"enabled": true}, got)
}
