package fixedpoint

import "errors"

var (
	// ErrOverflow indicates a result does not fit the fixed width.
	ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

	// ErrDivideByZero indicates a zero divisor.
	ErrDivideByZero = errors.New("fixedpoint: divide by zero")

	// ErrNilValue indicates an uninitialized Int.
	ErrNilValue = errors.New("fixedpoint: nil value")

	// ErrInvalidEncoding indicates malformed encoded bytes.
	ErrInvalidEncoding = errors.New("fixedpoint: invalid encoding")
)
