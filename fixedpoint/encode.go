package fixedpoint

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// EncodedSize is the size of an encoded Int: sign(1) + magnitude(32).
const EncodedSize = 33

const (
	signPositive = 0x00
	signNegative = 0x01
)

// Encode writes x into a fixed 33-byte big-endian form.
func Encode(x Int) []byte {
	buf := make([]byte, EncodedSize)
	PutInt(buf, x)
	return buf
}

// PutInt writes x into buf[0:33]. buf must be at least EncodedSize long.
func PutInt(buf []byte, x Int) {
	b := x.BigInt()
	if b == nil {
		b = new(big.Int)
	}
	if b.Sign() < 0 {
		buf[0] = signNegative
	} else {
		buf[0] = signPositive
	}
	new(big.Int).Abs(b).FillBytes(buf[1:EncodedSize])
}

// Decode parses the 33-byte form written by Encode.
func Decode(data []byte) (Int, error) {
	if len(data) != EncodedSize {
		return Zero(), fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidEncoding, EncodedSize, len(data))
	}
	mag := new(big.Int).SetBytes(data[1:])
	switch data[0] {
	case signPositive:
	case signNegative:
		mag.Neg(mag)
	default:
		return Zero(), fmt.Errorf("%w: sign byte 0x%02x", ErrInvalidEncoding, data[0])
	}
	if mag.BitLen() > sdkmath.MaxBitLen {
		return Zero(), fmt.Errorf("%w: %d bits", ErrOverflow, mag.BitLen())
	}
	return sdkmath.NewIntFromBigInt(mag), nil
}
