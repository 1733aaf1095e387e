package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/argon2"

	"github.com/preethamak/BlockDrive/codec"
	"github.com/preethamak/BlockDrive/identity"
)

const (
	// Argon2id parameters for key encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Encryption format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4

	// privKeyLen is the serialized secp256k1 scalar size.
	privKeyLen = 32

	// KeyFileVersion is the current key file envelope version.
	KeyFileVersion = 1

	// DefaultKeyFileName is the key file name inside the data directory.
	DefaultKeyFileName = "identity.key"
)

// KeyFile is the on-disk envelope. The public half is kept in the clear so
// the identity can be shown without the password.
type KeyFile struct {
	Version   int    `cbor:"1,keyasint"`
	Network   string `cbor:"2,keyasint"`
	Path      string `cbor:"3,keyasint"`
	PubKey    []byte `cbor:"4,keyasint"`
	Encrypted []byte `cbor:"5,keyasint"`
}

// Identity returns the identity of the envelope's public key.
func (kf *KeyFile) Identity() (identity.Identity, error) {
	pub, err := ec.PublicKeyFromBytes(kf.PubKey)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrKeyFileCorrupt, err)
	}
	return identity.FromPublicKey(pub)
}

// EncryptKey encrypts a private key with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, key||checksum)
//
// The checksum is SHA256(key)[:4].
func EncryptKey(priv *ec.PrivateKey, password string) ([]byte, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	raw := priv.Serialize()

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	plaintext := make([]byte, 0, len(raw)+ChecksumLen)
	plaintext = append(plaintext, raw...)
	plaintext = append(plaintext, sum[:ChecksumLen]...)

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, SaltLen+NonceLen+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// DecryptKey reverses EncryptKey.
func DecryptKey(encrypted []byte, password string) (*ec.PrivateKey, error) {
	if len(encrypted) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := encrypted[:SaltLen]
	nonce := encrypted[SaltLen : SaltLen+NonceLen]
	ciphertext := encrypted[SaltLen+NonceLen:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(plaintext) != privKeyLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	raw := plaintext[:privKeyLen]
	sum := sha256.Sum256(raw)
	if !bytes.Equal(plaintext[privKeyLen:], sum[:ChecksumLen]) {
		return nil, ErrChecksumMismatch
	}

	priv, _ := ec.PrivateKeyFromBytes(raw)
	return priv, nil
}

// newGCM derives the AES-256 key from password and salt.
func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derivedKey := argon2.IDKey(
		[]byte(password),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Parallelism,
		Argon2KeyLen,
	)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}

// KeyFilePath returns the key file path inside dataDir.
func KeyFilePath(dataDir string) string {
	return filepath.Join(dataDir, DefaultKeyFileName)
}

// SaveKeyFile encrypts kp under password and writes it to path with mode
// 0600, creating parent directories as needed.
func SaveKeyFile(path string, kp *KeyPair, network, password string) error {
	if kp == nil || kp.PrivateKey == nil {
		return ErrNilKey
	}
	encrypted, err := EncryptKey(kp.PrivateKey, password)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(KeyFile{
		Version:   KeyFileVersion,
		Network:   network,
		Path:      kp.Path,
		PubKey:    kp.PrivateKey.PubKey().Compressed(),
		Encrypted: encrypted,
	})
	if err != nil {
		return fmt.Errorf("wallet: encode key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create key directory: %w", err)
	}
	// Atomic replace of any previous key.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("wallet: write key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("wallet: write key file: %w", err)
	}
	return nil
}

// ReadKeyFile reads the envelope at path without decrypting it.
func ReadKeyFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyFileNotFound, path)
		}
		return nil, fmt.Errorf("wallet: read key file: %w", err)
	}
	var kf KeyFile
	if err := codec.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFileCorrupt, err)
	}
	if kf.Version != KeyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrKeyFileCorrupt, kf.Version)
	}
	return &kf, nil
}

// LoadKeyFile reads and decrypts the key at path.
func LoadKeyFile(path, password string) (*KeyPair, error) {
	kf, err := ReadKeyFile(path)
	if err != nil {
		return nil, err
	}
	priv, err := DecryptKey(kf.Encrypted, password)
	if err != nil {
		return nil, err
	}
	pub := priv.PubKey()
	if !bytes.Equal(pub.Compressed(), kf.PubKey) {
		return nil, fmt.Errorf("%w: public key does not match encrypted key", ErrKeyFileCorrupt)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Path: kf.Path}, nil
}
