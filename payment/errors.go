package payment

import "errors"

var (
	// ErrInsufficientFunds indicates the payer's balance is below the amount.
	ErrInsufficientFunds = errors.New("payment: insufficient funds")

	// ErrInsufficientReserve indicates the escrow reserve cannot cover a payout.
	ErrInsufficientReserve = errors.New("payment: insufficient reserve")

	// ErrInvalidAmount indicates a zero amount.
	ErrInvalidAmount = errors.New("payment: amount must be positive")

	// ErrInvalidUnit indicates an empty revenue unit.
	ErrInvalidUnit = errors.New("payment: invalid unit")

	// ErrOverflow indicates a balance would exceed uint64.
	ErrOverflow = errors.New("payment: balance overflow")
)
