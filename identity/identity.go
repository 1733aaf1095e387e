// Package identity defines the opaque account identifier used as owner and
// grantee throughout the registry.
//
// An Identity is HASH160(compressed secp256k1 public key), the payload of a
// P2PKH address. The registry only ever compares identities for equality;
// it never issues them.
package identity

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
)

// Size is the fixed width of an Identity in bytes.
const Size = 20

// Identity is a fixed-width public address. The zero value is not a valid
// identity.
type Identity [Size]byte

// FromPublicKey derives the identity owned by pub.
func FromPublicKey(pub *ec.PublicKey) (Identity, error) {
	if pub == nil {
		return Identity{}, ErrNilPublicKey
	}
	var id Identity
	copy(id[:], bsvhash.Hash160(pub.Compressed()))
	return id, nil
}

// FromBytes copies a 20-byte public key hash into an Identity.
func FromBytes(b []byte) (Identity, error) {
	if len(b) != Size {
		return Identity{}, fmt.Errorf("%w: got %d bytes", ErrInvalidIdentity, len(b))
	}
	var id Identity
	copy(id[:], b)
	if id.IsZero() {
		return Identity{}, fmt.Errorf("%w: zero hash", ErrInvalidIdentity)
	}
	return id, nil
}

// Parse accepts a base58check P2PKH address on any network, or the hash
// itself as 40 hex characters (an optional "0x" prefix is allowed).
func Parse(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity{}, fmt.Errorf("%w: empty string", ErrInvalidIdentity)
	}

	hexStr := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hexStr) == 2*Size {
		if b, err := hex.DecodeString(hexStr); err == nil {
			return FromBytes(b)
		}
	}

	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q: %w", ErrInvalidIdentity, s, err)
	}
	id, err := FromBytes(addr.PublicKeyHash)
	if err != nil {
		return Identity{}, err
	}
	// Re-encoding must reproduce the input exactly; this rejects a bad
	// checksum or an unknown version byte.
	if id.Address("mainnet") != s && id.Address("testnet") != s {
		return Identity{}, fmt.Errorf("%w: %q: checksum mismatch", ErrInvalidIdentity, s)
	}
	return id, nil
}

// MustParse is Parse for constants and tests. It panics on error.
func MustParse(s string) Identity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether id is the zero value.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Bytes returns a copy of the 20-byte hash.
func (id Identity) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// Hex returns the hash as lowercase hex.
func (id Identity) Hex() string {
	return hex.EncodeToString(id[:])
}

// Address renders id as a P2PKH address for the named network.
// Any network other than "mainnet" uses the testnet version byte.
func (id Identity) Address(network string) string {
	addr, err := script.NewAddressFromPublicKeyHash(id[:], network == "mainnet")
	if err != nil {
		// Only reachable for a malformed hash length, which Identity rules out.
		return id.Hex()
	}
	return addr.AddressString
}

// String renders the mainnet address.
func (id Identity) String() string {
	return id.Address("mainnet")
}

// Compare orders identities bytewise.
func (id Identity) Compare(other Identity) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
