package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrIndexOutOfRange indicates an identity index at or above the BIP32
	// hardened boundary.
	ErrIndexOutOfRange = errors.New("wallet: identity index exceeds maximum (2^31-1)")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrNilKey indicates a nil private key was passed for encryption.
	ErrNilKey = errors.New("wallet: private key is nil")

	// ErrDecryptionFailed indicates wrong password or corrupted key data.
	ErrDecryptionFailed = errors.New("wallet: key decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates key checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("wallet: key checksum mismatch")

	// ErrKeyFileNotFound indicates the key file does not exist.
	ErrKeyFileNotFound = errors.New("wallet: key file not found")

	// ErrKeyFileCorrupt indicates the key file envelope cannot be decoded or
	// does not match the key it carries.
	ErrKeyFileCorrupt = errors.New("wallet: key file corrupt")
)
