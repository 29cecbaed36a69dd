package encoding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/entstore/core/es"
)

type service struct {
	Label   string   `json:"label"`
	Enabled bool     `json:"enabled"`
	Port    int      `json:"port,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

var serviceID = es.NewIdentifier("vineyards", "services")

func TestEncoding_RoundTrip(t *testing.T) {
	for _, f := range []Format{JSON, YAML} {
		t.Run(f.String(), func(t *testing.T) {
			enc := New[service](nil, WithFormat(f))
			in := service{Label: "Vineyards", Enabled: true, Port: 8080, Tags: []string{"a", "b"}}

			payload, err := enc.Serialize(in)
			require.NoError(t, err)

			out, ok, err := enc.Deserialize(serviceID, payload, enc.DefaultFormat(), true)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, in, out)
		})
	}
}

func TestEncoding_Deserialize_NoValue(t *testing.T) {
	enc := New[service](nil)

	for name, tc := range map[string]struct {
		payload string
		format  string
	}{
		"empty":       {"", "JSON"},
		"null":        {"null", "JSON"},
		"yaml null":   {"~", "YAML"},
		"unknown tag": {`{"label":"x"}`, "UNKNOWN"},
	} {
		t.Run(name, func(t *testing.T) {
			_, ok, err := enc.Deserialize(serviceID, []byte(tc.payload), tc.format, true)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestEncoding_Deserialize_Errors(t *testing.T) {
	enc := New[service](nil)

	_, _, err := enc.Deserialize(serviceID, []byte(`{"port":"eighty"}`), "JSON", true)
	require.ErrorIs(t, err, es.ErrDecode)

	_, _, err = enc.Deserialize(serviceID, []byte(`{"label":`), "JSON", true)
	require.ErrorIs(t, err, es.ErrDecode)

	_, _, err = enc.Deserialize(serviceID, []byte(`[1,2]`), "JSON", true)
	require.ErrorIs(t, err, es.ErrDecode)

	_, _, err = enc.Deserialize(serviceID, []byte(`{}`), "XML", true)
	require.ErrorIs(t, err, es.ErrUnknownFormat)
}

func TestEncoding_ValueFactory(t *testing.T) {
	enc := New(func() service { return service{Enabled: true, Port: 80} })

	out, ok, err := enc.Deserialize(serviceID, []byte(`{"label":"x"}`), "json", true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, service{Label: "x", Enabled: true, Port: 80}, out)
}

func TestEncoding_HasValue(t *testing.T) {
	enc := New[service](nil)

	ok, err := enc.HasValue("yaml")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = enc.HasValue("")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = enc.HasValue("csv")
	require.ErrorIs(t, err, es.ErrUnknownFormat)
}

func TestEncoding_NestPayload(t *testing.T) {
	enc := New[map[string]any](nil)

	nested, err := enc.NestPayload([]byte(`{"enabled":true}`), "JSON", []string{"api", "oas30"}, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"api":{"oas30":{"enabled":true}}}`, string(nested))

	alias := func(v map[string]any) map[string]any {
		block := map[string]any{"buildingBlock": "OAS30"}
		for k, val := range v {
			block[k] = val
		}
		return map[string]any{"api": []any{block}}
	}
	aliased, err := enc.NestPayload([]byte(`{"enabled":true}`), "JSON", []string{"oas30"}, alias)
	require.NoError(t, err)
	require.JSONEq(t, `{"api":[{"buildingBlock":"OAS30","enabled":true}]}`, string(aliased))

	unchanged, err := enc.NestPayload([]byte(`{"enabled":true}`), "JSON", nil, nil)
	require.NoError(t, err)
	require.Equal(t, `{"enabled":true}`, string(unchanged))
}

func TestEncoding_NestPayload_YAML(t *testing.T) {
	enc := New[map[string]any](nil, WithFormat(YAML))

	nested, err := enc.NestPayload([]byte("enabled: true\n"), "YAML", []string{"caching"}, nil)
	require.NoError(t, err)

	tree, ok, err := enc.Deserialize(serviceID, nested, "YAML", true)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(map[string]any{"caching": map[string]any{"enabled": true}}, tree); diff != "" {
		t.Errorf("nested tree mismatch (-want +got):\n%s", diff)
	}
}
