package revshare

import (
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/libroyalty-go/fixedpoint"
)

// AddressSize is the length of an account address (HASH160 of a public key).
const AddressSize = 20

// Address identifies a shareholder account.
type Address [AddressSize]byte

// String returns the lowercase hex form of the address.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }

// ParseAddress decodes a 40-character hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Holder is the per-account ledger record.
type Holder struct {
	Balance    uint64         // Shares held
	Correction fixedpoint.Int // Signed, magnified by SCALE
	Withdrawn  uint64         // Cumulative amount paid out
}

// Header is the per-asset ledger record.
type Header struct {
	TotalShares    uint64         // Shares issued, never decreases
	AccPerShare    fixedpoint.Int // Revenue per share, magnified by SCALE
	TotalDeposited uint64         // Sum of all deposits
	TotalClaimed   uint64         // Sum of all claims
}

func emptyHolder() Holder {
	return Holder{Correction: fixedpoint.Zero()}
}

func emptyHeader() Header {
	return Header{AccPerShare: fixedpoint.Zero()}
}
