package es

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifier_String(t *testing.T) {
	require.Equal(t, "services/vineyards", NewIdentifier("vineyards", "services").String())
	require.Equal(t, "defaults", NewIdentifier("defaults").String())
	require.Equal(t, "providers/sql/defaults", NewIdentifier("defaults", "providers", "sql").String())
}

func TestIdentifier_Equality(t *testing.T) {
	a := NewIdentifier("x", "services", "ogc")
	b := IdentifierFrom("/x/", "services/", "", "ogc")
	require.Equal(t, a, b)
	require.True(t, a == b)
	require.NotEqual(t, a, NewIdentifier("x", "services"))

	m := map[Identifier]int{a: 1}
	require.Equal(t, 1, m[b])
}

func TestIdentifier_SegmentWithSeparator(t *testing.T) {
	nested := NewIdentifier("x", "a/b")
	require.NotEqual(t, NewIdentifier("x", "a", "b"), nested)
	require.ErrorIs(t, nested.Validate(), ErrInvalidArgument)
	require.ErrorIs(t, NewIdentifier("a/x").Validate(), ErrInvalidArgument)
	require.ErrorIs(t, NewIdentifier("x", "a").WithID("b/x").Validate(), ErrInvalidArgument)
	require.ErrorIs(t, IdentifierFrom("x", "/a/b/").Validate(), ErrInvalidArgument)
	require.NoError(t, NewIdentifier("x", "a", "b").Validate())

	_, err := nested.MarshalText()
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, NewMutationEvent("entities", nested, nil, "JSON").Validate(), ErrInvalidArgument)
}

func TestParseIdentifier(t *testing.T) {
	id, err := ParseIdentifier("/providers/sql/my-id")
	require.NoError(t, err)
	require.Equal(t, []string{"providers", "sql"}, id.Path())
	require.Equal(t, "my-id", id.ID())
	require.Equal(t, "providers", id.First())
	require.Equal(t, 2, id.PathLen())

	for _, s := range []string{"", "/", "a//b"} {
		_, err := ParseIdentifier(s)
		require.ErrorIs(t, err, ErrInvalidArgument, s)
	}
}

func TestIdentifier_TextRoundTrip(t *testing.T) {
	in := NewIdentifier("b", "a")
	text, err := in.MarshalText()
	require.NoError(t, err)

	var out Identifier
	require.NoError(t, out.UnmarshalText(text))
	require.Equal(t, in, out)
}

func TestIdentifier_Compare(t *testing.T) {
	ids := []Identifier{
		NewIdentifier("b", "services"),
		NewIdentifier("z", "providers", "sql"),
		NewIdentifier("a", "services"),
		NewIdentifier("a", "providers"),
		NewIdentifier("root"),
	}
	slices.SortFunc(ids, Identifier.Compare)

	var got []string
	for _, id := range ids {
		got = append(got, id.String())
	}
	require.Equal(t, []string{"root", "providers/a", "providers/sql/z", "services/a", "services/b"}, got)
	require.True(t, ids[0].Less(ids[1]))
	require.Zero(t, ids[1].Compare(NewIdentifier("a", "providers")))
}

func TestIdentifier_Paths(t *testing.T) {
	id := NewIdentifier("x", "providers", "sql")
	require.True(t, id.HasPath("providers", "sql"))
	require.False(t, id.HasPath("providers"))
	require.True(t, id.HasPrefix("providers"))
	require.True(t, id.HasPrefix())
	require.False(t, id.HasPrefix("providers", "sql", "x"))
	require.Equal(t, []string{"providers", "sql", "x"}, id.Segments())
	require.Equal(t, NewIdentifier("y", "providers", "sql"), id.WithID("y"))
	require.True(t, Identifier{}.IsZero())
}

func TestEventFilter_Matches(t *testing.T) {
	svc := NewIdentifier("a", "services")
	prov := NewIdentifier("b", "providers")
	root := NewIdentifier("c")

	all := EventFilter{EntityTypes: []string{Wildcard}, IDs: []string{Wildcard}}
	require.True(t, all.Matches(svc))
	require.True(t, all.Matches(root))

	services := EventFilter{EntityTypes: []string{"services"}, IDs: []string{Wildcard}}
	require.True(t, services.Matches(svc))
	require.False(t, services.Matches(prov))
	require.False(t, services.Matches(root))

	byID := EventFilter{EntityTypes: []string{Wildcard}, IDs: []string{"b"}}
	require.False(t, byID.Matches(svc))
	require.True(t, byID.Matches(prov))
}

func TestMutationEvent_Validate(t *testing.T) {
	require.NoError(t, NewMutationEvent("entities", NewIdentifier("a"), nil, "JSON").Validate())
	require.Error(t, NewMutationEvent("", NewIdentifier("a"), nil, "JSON").Validate())
	require.Error(t, NewMutationEvent("entities", Identifier{}, nil, "JSON").Validate())

	a := NewMutationEvent("entities", NewIdentifier("a"), nil, "JSON")
	b := NewMutationEvent("entities", NewIdentifier("a"), nil, "JSON")
	require.NotEqual(t, a.ID, b.ID)
}
