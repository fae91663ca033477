package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates an unsupported mnemonic length.
	ErrInvalidEntropy = errors.New("wallet: mnemonic must have 12 or 24 words")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrIndexOutOfRange indicates an account or key index at or above the
	// BIP32 hardened boundary.
	ErrIndexOutOfRange = errors.New("wallet: index exceeds maximum (2^31-1)")

	// ErrInvalidAddress indicates an address string cannot be decoded.
	ErrInvalidAddress = errors.New("wallet: invalid address")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("wallet: required parameter is nil")

	// ErrInvalidSignature indicates a transfer authorization signature does
	// not verify against its public key.
	ErrInvalidSignature = errors.New("wallet: invalid signature")

	// ErrSignerMismatch indicates the signing key does not belong to the
	// sender named in the authorization.
	ErrSignerMismatch = errors.New("wallet: signer is not the sender")
)
