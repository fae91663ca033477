package wallet

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// AddressFromPubKey returns the ledger address of pub: Hash160 of the
// compressed key.
func AddressFromPubKey(pub *ec.PublicKey) revshare.Address {
	var addr revshare.Address
	copy(addr[:], bsvhash.Hash160(pub.Compressed()))
	return addr
}

// EncodeAddress renders addr as a Base58Check P2PKH address string.
func EncodeAddress(addr revshare.Address, mainnet bool) (string, error) {
	a, err := script.NewAddressFromPublicKeyHash(addr[:], mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return a.AddressString, nil
}

// DecodeAddress parses a Base58Check P2PKH address string.
func DecodeAddress(s string) (revshare.Address, error) {
	var addr revshare.Address
	a, err := script.NewAddressFromString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	pkh := []byte(a.PublicKeyHash)
	if len(pkh) != revshare.AddressSize {
		return addr, fmt.Errorf("%w: public key hash is %d bytes", ErrInvalidAddress, len(pkh))
	}
	copy(addr[:], pkh)
	return addr, nil
}
