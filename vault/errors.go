package vault

import (
	"errors"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// Ledger errors surface unchanged from revshare.
var (
	ErrInvalidAmount      = revshare.ErrInvalidAmount
	ErrInsufficientShares = revshare.ErrInsufficientShares
	ErrNoShares           = revshare.ErrNoShares
	ErrNothingToClaim     = revshare.ErrNothingToClaim
	ErrInvariantViolation = revshare.ErrInvariantViolation
	ErrOverflow           = revshare.ErrOverflow
)

var (
	// ErrPriceMismatch indicates the payment does not equal shares * price.
	ErrPriceMismatch = errors.New("vault: payment does not match price")

	// ErrSupplyExhausted indicates a purchase would exceed MaxSupply.
	ErrSupplyExhausted = errors.New("vault: share supply exhausted")

	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("vault: unauthorized")

	// ErrStaleNonce indicates a signed transfer reuses or rewinds a nonce.
	ErrStaleNonce = errors.New("vault: stale transfer nonce")

	// ErrAssetMismatch indicates a signed transfer names another asset.
	ErrAssetMismatch = errors.New("vault: authorization is for another asset")

	// ErrPaymentFailed indicates the inbound payment effect failed.
	ErrPaymentFailed = errors.New("vault: payment failed")

	// ErrPayoutFailed indicates the outbound payout effect failed.
	ErrPayoutFailed = errors.New("vault: payout failed")

	// ErrNotFound indicates no asset record exists for the id.
	ErrNotFound = errors.New("vault: asset not found")

	// ErrInvalidAssetID indicates an asset id string cannot be decoded.
	ErrInvalidAssetID = errors.New("vault: invalid asset id")

	// ErrAssetExists indicates an asset record already exists for the id.
	ErrAssetExists = errors.New("vault: asset already exists")

	// ErrInvalidConfig indicates an unusable vault configuration.
	ErrInvalidConfig = errors.New("vault: invalid config")

	// ErrInvalidRecord indicates a persisted record cannot be decoded.
	ErrInvalidRecord = errors.New("vault: invalid record")

	// ErrNilParam indicates a required dependency is missing.
	ErrNilParam = errors.New("vault: required parameter is nil")
)
