package revshare

import "errors"

var (
	// ErrInvalidAmount indicates a zero share or revenue amount.
	ErrInvalidAmount = errors.New("revshare: invalid amount")

	// ErrInsufficientShares indicates a move exceeds the sender's balance.
	ErrInsufficientShares = errors.New("revshare: insufficient shares")

	// ErrNoShares indicates a deposit while no shares exist.
	ErrNoShares = errors.New("revshare: no shares outstanding")

	// ErrNothingToClaim indicates the account has nothing withdrawable.
	// It is a benign no-op signal, not a failure.
	ErrNothingToClaim = errors.New("revshare: nothing to claim")

	// ErrOverflow indicates a counter or accumulator exceeded its width.
	ErrOverflow = errors.New("revshare: arithmetic overflow")

	// ErrInvariantViolation indicates the ledger reached an inconsistent state.
	// It is fatal: the operation that observed it must be aborted.
	ErrInvariantViolation = errors.New("revshare: ledger invariant violated")

	// ErrInvalidAddress indicates a malformed account address.
	ErrInvalidAddress = errors.New("revshare: invalid address")

	// ErrInvalidHeaderData indicates the encoded header is malformed.
	ErrInvalidHeaderData = errors.New("revshare: invalid header data")

	// ErrInvalidHolderData indicates the encoded holder record is malformed.
	ErrInvalidHolderData = errors.New("revshare: invalid holder data")
)
