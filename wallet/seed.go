// Package wallet provides account identities for the royalty ledger:
// BIP39/BIP32 account keys, addresses derived from secp256k1 public keys,
// signed share-transfer authorizations and operator approvals.
//
// Key hierarchy: m/44'/236'/{account}'/0/{index}.
package wallet

import (
	"fmt"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
)

// entropyBits maps supported phrase lengths to BIP39 entropy sizes.
var entropyBits = map[int]int{12: 128, 24: 256}

// NewMnemonic returns a fresh BIP39 phrase of 12 or 24 words.
func NewMnemonic(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", fmt.Errorf("%w: %d words", ErrInvalidEntropy, words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("wallet: entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// normalizeMnemonic collapses runs of whitespace so pasted phrases verify.
func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(m), " ")
}

// ValidateMnemonic reports whether m is a valid BIP39 phrase.
func ValidateMnemonic(m string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(m))
}

// SeedFromMnemonic derives the 64-byte BIP39 seed of m and passphrase.
func SeedFromMnemonic(m, passphrase string) ([]byte, error) {
	m = normalizeMnemonic(m)
	if !bip39.IsMnemonicValid(m) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(m, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// KeyringFromMnemonic opens the keyring rooted at the seed of m.
func KeyringFromMnemonic(m, passphrase string, mainnet bool) (*Keyring, error) {
	seed, err := SeedFromMnemonic(m, passphrase)
	if err != nil {
		return nil, err
	}
	return NewKeyring(seed, mainnet)
}
