package identity

import "errors"

var (
	// ErrInvalidIdentity indicates a string is neither a P2PKH address nor a 40-char hex hash.
	ErrInvalidIdentity = errors.New("identity: invalid identity")

	// ErrNilPublicKey indicates a nil public key was provided.
	ErrNilPublicKey = errors.New("identity: public key is nil")
)
