package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/preethamak/BlockDrive/identity"
)

const (
	// BIP44 path constants.
	PurposeBIP44    = 44
	CoinType        = 236
	IdentityAccount = 0
	ExternalChain   = 0

	// MaxIdentityIndex is the largest non-hardened child index.
	MaxIdentityIndex = 1<<31 - 1

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives identity keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	network   string
}

// KeyPair holds a derived identity key.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
}

// Identity returns the identity the pair signs for.
func (kp *KeyPair) Identity() identity.Identity {
	id, _ := identity.FromPublicKey(kp.PublicKey)
	return id
}

// NewWallet creates a Wallet from a BIP39 seed. Any network other than
// "mainnet" uses testnet extended key versions.
func NewWallet(seed []byte, network string) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == "" {
		network = "mainnet"
	}

	params := &chaincfg.TestNet
	if network == "mainnet" {
		params = &chaincfg.MainNet
	}

	masterKey, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey, network: network}, nil
}

// FromMnemonic is SeedFromMnemonic followed by NewWallet.
func FromMnemonic(mnemonic, passphrase, network string) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return NewWallet(seed, network)
}

// Network returns the network name the wallet was created for.
func (w *Wallet) Network() string {
	return w.network
}

// DeriveIdentityKey derives the identity key at m/44'/236'/0'/0/index.
func (w *Wallet) DeriveIdentityKey(index uint32) (*KeyPair, error) {
	if index > MaxIdentityIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	key := w.masterKey
	steps := []struct {
		child uint32
		what  string
	}{
		{PurposeBIP44 + Hardened, "purpose"},
		{CoinType + Hardened, "coin type"},
		{IdentityAccount + Hardened, "account"},
		{ExternalChain, "chain"},
		{index, "index"},
	}
	for _, s := range steps {
		next, err := key.Child(s.child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s derivation: %w", ErrDerivationFailed, s.what, err)
		}
		key = next
	}

	path := fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", PurposeBIP44, CoinType, IdentityAccount, ExternalChain, index)
	return extKeyToKeyPair(key, path)
}

// extKeyToKeyPair converts a bip32.ExtendedKey to a KeyPair.
func extKeyToKeyPair(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	pubKey := privKey.PubKey()
	if pubKey == nil {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrDerivationFailed)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Path:       path,
	}, nil
}
