package auth

import "errors"

var (
	// ErrMissingCredentials indicates a request carried no or partial credentials.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrBadSignature indicates the public key or signature is malformed or
	// the signature does not verify.
	ErrBadSignature = errors.New("auth: bad signature")

	// ErrStale indicates the signed timestamp is outside the accepted window.
	ErrStale = errors.New("auth: stale timestamp")

	// ErrReplayed indicates the credentials were already accepted once.
	ErrReplayed = errors.New("auth: replayed request")

	// ErrNilKey indicates Sign was called without a private key.
	ErrNilKey = errors.New("auth: nil private key")
)
