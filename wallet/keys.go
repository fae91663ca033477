package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

const (
	// BIP44 path constants.
	PurposeBIP44 = 44
	CoinType     = 236

	// MaxIndex is the largest non-hardened BIP32 child index.
	MaxIndex = 1<<31 - 1

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Keyring derives ledger account keys from a BIP39 seed.
type Keyring struct {
	masterKey *bip32.ExtendedKey
	mainnet   bool
}

// KeyPair holds a derived key pair and the ledger address it controls.
type KeyPair struct {
	PrivateKey *ec.PrivateKey   `json:"-"`
	PublicKey  *ec.PublicKey    `json:"public_key"`
	Address    revshare.Address `json:"address"`
	Path       string           `json:"path"` // Human-readable derivation path
}

// NewKeyring creates a keyring from a BIP39 seed.
func NewKeyring(seed []byte, mainnet bool) (*Keyring, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	net := &chaincfg.TestNet
	if mainnet {
		net = &chaincfg.MainNet
	}

	masterKey, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Keyring{masterKey: masterKey, mainnet: mainnet}, nil
}

// Mainnet reports whether addresses are encoded for mainnet.
func (k *Keyring) Mainnet() bool { return k.mainnet }

// AccountKey derives the key pair at m/44'/236'/account'/0/index.
func (k *Keyring) AccountKey(account, index uint32) (*KeyPair, error) {
	if account > MaxIndex || index > MaxIndex {
		return nil, ErrIndexOutOfRange
	}

	current := k.masterKey
	steps := []struct {
		name  string
		child uint32
	}{
		{"purpose", PurposeBIP44 + Hardened},
		{"coin type", CoinType + Hardened},
		{"account", account + Hardened},
		{"chain", 0},
		{"index", index},
	}
	for _, s := range steps {
		next, err := current.Child(s.child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s derivation: %w", ErrDerivationFailed, s.name, err)
		}
		current = next
	}

	return extKeyToKeyPair(current, fmt.Sprintf("m/44'/236'/%d'/0/%d", account, index))
}

// NewKeyPair returns a random key pair outside any hierarchy.
func NewKeyPair() (*KeyPair, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	pub := priv.PubKey()
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Address: AddressFromPubKey(pub)}, nil
}

// extKeyToKeyPair converts a BIP32 extended key to a KeyPair.
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
		Address:    AddressFromPubKey(pubKey),
		Path:       path,
	}, nil
}
