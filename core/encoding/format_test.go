package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/entstore/core/es"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"JSON":    JSON,
		"json":    JSON,
		"Yaml":    YAML,
		"yml":     YAML,
		"":        UNKNOWN,
		"null":    UNKNOWN,
		"UNKNOWN": UNKNOWN,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseFormat_Unrecognized(t *testing.T) {
	_, err := ParseFormat("toml")
	require.ErrorIs(t, err, es.ErrUnknownFormat)
}
