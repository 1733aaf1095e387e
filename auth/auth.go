// Package auth authenticates remote callers by possession of their
// identity key.
//
// A client signs each request:
//
//	digest = SHA256d(method || 0x00 || unix-seconds || 0x00 || nonce || 0x00 || payload)
//
// with the secp256k1 key whose HASH160 is its identity, and sends the
// compressed public key, the timestamp, the random nonce and the DER
// signature alongside the request. The server recomputes the digest, checks
// the signature and the timestamp window, rejects any digest it has already
// accepted inside that window, and derives the caller identity from the
// public key.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/preethamak/BlockDrive/identity"
)

// DefaultWindow is the maximum clock skew between signer and verifier.
const DefaultWindow = 5 * time.Minute

// NonceLen is the size of the random per-request nonce.
const NonceLen = 16

// Credentials travel with every authenticated request.
type Credentials struct {
	PubKey    []byte // compressed, 33 bytes
	Timestamp int64  // unix seconds
	Nonce     []byte // NonceLen random bytes
	Signature []byte // DER
}

// IsZero reports whether no credential field is set.
func (c Credentials) IsZero() bool {
	return len(c.PubKey) == 0 && c.Timestamp == 0 && len(c.Nonce) == 0 && len(c.Signature) == 0
}

// Encode renders c as the four header values.
func (c Credentials) Encode() (pubKey, timestamp, nonce, signature string) {
	return hex.EncodeToString(c.PubKey), strconv.FormatInt(c.Timestamp, 10),
		hex.EncodeToString(c.Nonce), hex.EncodeToString(c.Signature)
}

// ParseCredentials is the inverse of Encode. Any empty value yields
// ErrMissingCredentials; any malformed value yields ErrBadSignature.
func ParseCredentials(pubKey, timestamp, nonce, signature string) (Credentials, error) {
	if pubKey == "" || timestamp == "" || nonce == "" || signature == "" {
		return Credentials{}, ErrMissingCredentials
	}
	pk, err := hex.DecodeString(pubKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: public key: %w", ErrBadSignature, err)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: timestamp: %w", ErrBadSignature, err)
	}
	n, err := hex.DecodeString(nonce)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: nonce: %w", ErrBadSignature, err)
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: signature: %w", ErrBadSignature, err)
	}
	return Credentials{PubKey: pk, Timestamp: ts, Nonce: n, Signature: sig}, nil
}

// Digest returns the hash that is signed for (method, unix, nonce, payload).
func Digest(method string, unix int64, nonce, payload []byte) []byte {
	ts := strconv.FormatInt(unix, 10)
	msg := make([]byte, 0, len(method)+len(ts)+len(nonce)+len(payload)+3)
	msg = append(msg, method...)
	msg = append(msg, 0)
	msg = append(msg, ts...)
	msg = append(msg, 0)
	msg = append(msg, nonce...)
	msg = append(msg, 0)
	msg = append(msg, payload...)
	return bsvhash.Sha256d(msg)
}

// Sign produces credentials for a call to method carrying payload. Each
// call draws a fresh nonce, so identical calls in the same second produce
// distinct credentials.
func Sign(priv *ec.PrivateKey, method string, payload []byte, now time.Time) (Credentials, error) {
	if priv == nil {
		return Credentials{}, ErrNilKey
	}
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return Credentials{}, fmt.Errorf("auth: nonce: %w", err)
	}
	unix := now.Unix()
	sig, err := priv.Sign(Digest(method, unix, nonce, payload))
	if err != nil {
		return Credentials{}, fmt.Errorf("auth: sign: %w", err)
	}
	return Credentials{
		PubKey:    priv.PubKey().Compressed(),
		Timestamp: unix,
		Nonce:     nonce,
		Signature: sig.Serialize(),
	}, nil
}

// Verifier checks credentials. The zero value uses DefaultWindow and the
// system clock and does not detect replays; servers install a ReplayCache
// in Seen.
type Verifier struct {
	Window time.Duration
	Clock  func() time.Time
	Seen   *ReplayCache
}

// NewVerifier returns a Verifier with the given window and its own
// ReplayCache.
func NewVerifier(window time.Duration) Verifier {
	return Verifier{Window: window, Seen: NewReplayCache()}
}

// WithReplayCache returns v with a fresh ReplayCache when it has none.
func (v Verifier) WithReplayCache() Verifier {
	if v.Seen == nil {
		v.Seen = NewReplayCache()
	}
	return v
}

// Verify authenticates creds for method and payload and returns the
// caller's identity. A digest already accepted by v.Seen yields ErrReplayed.
func (v Verifier) Verify(creds Credentials, method string, payload []byte) (identity.Identity, error) {
	if len(creds.PubKey) == 0 || len(creds.Signature) == 0 || len(creds.Nonce) == 0 || creds.Timestamp == 0 {
		return identity.Identity{}, ErrMissingCredentials
	}
	if len(creds.Nonce) != NonceLen {
		return identity.Identity{}, fmt.Errorf("%w: nonce length %d", ErrBadSignature, len(creds.Nonce))
	}

	window := v.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now
	if v.Clock != nil {
		now = v.Clock
	}
	at := now()
	signedAt := time.Unix(creds.Timestamp, 0)
	skew := at.Sub(signedAt)
	if skew > window || skew < -window {
		return identity.Identity{}, fmt.Errorf("%w: skew %s exceeds %s", ErrStale, skew.Truncate(time.Second), window)
	}

	pub, err := ec.PublicKeyFromBytes(creds.PubKey)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: public key: %w", ErrBadSignature, err)
	}
	sig, err := ec.ParseDERSignature(creds.Signature)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: signature: %w", ErrBadSignature, err)
	}
	digest := Digest(method, creds.Timestamp, creds.Nonce, payload)
	if !sig.Verify(digest, pub) {
		return identity.Identity{}, ErrBadSignature
	}
	caller, err := identity.FromPublicKey(pub)
	if err != nil {
		return identity.Identity{}, err
	}
	if v.Seen != nil && !v.Seen.Admit(caller, digest, signedAt.Add(window), at) {
		return identity.Identity{}, ErrReplayed
	}
	return caller, nil
}
