package identity

import (
	"encoding/json"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func TestFromPublicKey_Deterministic(t *testing.T) {
	priv := newKey(t)
	a, err := FromPublicKey(priv.PubKey())
	require.NoError(t, err)
	b, err := FromPublicKey(priv.PubKey())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestFromPublicKey_Nil(t *testing.T) {
	_, err := FromPublicKey(nil)
	assert.ErrorIs(t, err, ErrNilPublicKey)
}

func TestFromPublicKey_DistinctKeys(t *testing.T) {
	a, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)
	b, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParse_Address(t *testing.T) {
	id, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)

	for _, network := range []string{"mainnet", "testnet"} {
		t.Run(network, func(t *testing.T) {
			parsed, err := Parse(id.Address(network))
			require.NoError(t, err)
			assert.Equal(t, id, parsed)
		})
	}
}

func TestParse_Hex(t *testing.T) {
	id, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)

	parsed, err := Parse(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = Parse("0x" + strings.ToUpper(id.Hex()))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "not-an-address"},
		{"short_hex", "abcd"},
		{"zero_hash", strings.Repeat("00", Size)},
		{"bad_checksum", "1BoatSLRHtKNngkdXEeobR76b53LETtpyX"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			assert.ErrorIs(t, err, ErrInvalidIdentity)
		})
	}
}

func TestFromBytes_WrongLength(t *testing.T) {
	_, err := FromBytes(make([]byte, 19))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestBytes_ReturnsCopy(t *testing.T) {
	id, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)

	b := id.Bytes()
	b[0] ^= 0xff
	assert.NotEqual(t, b[0], id[0])
}

func TestText_JSONRoundTrip(t *testing.T) {
	id, err := FromPublicKey(newKey(t).PubKey())
	require.NoError(t, err)

	data, err := json.Marshal(map[string]Identity{"owner": id})
	require.NoError(t, err)
	assert.Contains(t, string(data), id.String())

	var out map[string]Identity
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, id, out["owner"])
}

func TestCompare(t *testing.T) {
	var a, b Identity
	a[0], b[0] = 1, 2
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
