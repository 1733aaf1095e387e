package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string            `cbor:"name"`
	Count  uint64            `cbor:"count"`
	Labels map[string]string `cbor:"labels"`
}

func TestMarshal_Deterministic(t *testing.T) {
	a := record{Name: "x", Count: 7, Labels: map[string]string{"b": "2", "a": "1", "c": "3"}}
	b := record{Name: "x", Count: 7, Labels: map[string]string{"c": "3", "a": "1", "b": "2"}}

	encA, err := Marshal(a)
	require.NoError(t, err)
	encB, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB, "map key order must not affect encoding")
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	in := record{Name: "ref", Count: 3}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out record
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Count, out.Count)
}

func TestUnmarshal_AnyUsesStringMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"k": "v"})
	require.NoError(t, err)

	var out any
	require.NoError(t, Unmarshal(data, &out))
	m, ok := out.(map[string]any)
	require.True(t, ok, "decoded map type = %T", out)
	assert.Equal(t, "v", m["k"])
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(uint64(1))
	require.NoError(t, err)
	diag, err := Diagnose(data)
	require.NoError(t, err)
	assert.Equal(t, "1", diag)
}
