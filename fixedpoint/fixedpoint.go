// Package fixedpoint implements the scaled-integer arithmetic used by the
// share ledger to track revenue per share.
//
// All values are signed integers bounded to 256 bits. Every operation is
// checked: a result that does not fit is reported as ErrOverflow rather
// than wrapped. Division truncates toward zero. No floating point is used
// anywhere in this package.
package fixedpoint

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// ScaleBits is the binary exponent of the magnification factor.
const ScaleBits = 128

// Int is a checked 256-bit signed integer.
type Int = sdkmath.Int

var scale = sdkmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), ScaleBits))

// Scale returns the magnification factor SCALE (2^128).
func Scale() Int { return scale }

// Zero returns 0.
func Zero() Int { return sdkmath.ZeroInt() }

// FromUint64 converts v to an Int.
func FromUint64(v uint64) Int { return sdkmath.NewIntFromUint64(v) }

// ToUint64 converts x to a uint64. Negative values and values wider than
// 64 bits are rejected with ErrOverflow.
func ToUint64(x Int) (uint64, error) {
	if x.IsNil() {
		return 0, ErrNilValue
	}
	if x.IsNegative() || !x.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in uint64", ErrOverflow, x)
	}
	return x.Uint64(), nil
}

// Add returns a+b.
func Add(a, b Int) (Int, error) {
	r, err := a.SafeAdd(b)
	if err != nil {
		return Zero(), fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return r, nil
}

// Sub returns a-b.
func Sub(a, b Int) (Int, error) {
	r, err := a.SafeSub(b)
	if err != nil {
		return Zero(), fmt.Errorf("%w: %s - %s", ErrOverflow, a, b)
	}
	return r, nil
}

// Mul returns a*b.
func Mul(a, b Int) (Int, error) {
	r, err := a.SafeMul(b)
	if err != nil {
		return Zero(), fmt.Errorf("%w: %s * %s", ErrOverflow, a, b)
	}
	return r, nil
}

// MulDiv returns a*b/d, truncated toward zero. The product is formed in
// the full 256-bit width so a and b may each be as wide as 128 bits.
func MulDiv(a, b, d Int) (Int, error) {
	if d.IsZero() {
		return Zero(), ErrDivideByZero
	}
	p, err := Mul(a, b)
	if err != nil {
		return Zero(), err
	}
	return p.Quo(d), nil
}

// Descale returns x/SCALE, truncated toward zero.
func Descale(x Int) Int {
	return x.Quo(scale)
}
