package vault

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
)

// AssetIDSize is the length of an asset id.
const AssetIDSize = 32

// MaxUnitLen bounds the revenue unit name.
const MaxUnitLen = 32

// AssetID identifies a registered content asset.
type AssetID [AssetIDSize]byte

// String returns the lowercase hex form of the id.
func (id AssetID) String() string { return hex.EncodeToString(id[:]) }

// ParseAssetID decodes a 64-character hex asset id.
func ParseAssetID(s string) (AssetID, error) {
	var id AssetID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AssetIDSize {
		return id, fmt.Errorf("%w: %q", ErrInvalidAssetID, s)
	}
	copy(id[:], b)
	return id, nil
}

// Proceeds selects where a share purchase payment goes.
type Proceeds uint8

const (
	// ProceedsToHolders deposits the purchase payment as revenue after the
	// new shares are minted, so the buyer participates in its own payment.
	ProceedsToHolders Proceeds = iota

	// ProceedsToCreator credits the payment to the creator's proceeds
	// balance; holders only share royalties deposited later.
	ProceedsToCreator
)

func (p Proceeds) String() string {
	switch p {
	case ProceedsToHolders:
		return "holders"
	case ProceedsToCreator:
		return "creator"
	default:
		return fmt.Sprintf("proceeds(%d)", uint8(p))
	}
}

// ParseProceeds parses "holders" or "creator". Empty means holders.
func ParseProceeds(s string) (Proceeds, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "holders":
		return ProceedsToHolders, nil
	case "creator":
		return ProceedsToCreator, nil
	default:
		return 0, fmt.Errorf("%w: unknown proceeds policy %q", ErrInvalidConfig, s)
	}
}

// Config holds the per-asset economic parameters.
type Config struct {
	PricePerShare uint64       // Revenue units per share
	RevenueUnit   payment.Unit // Unit all payments are made in
	LicensePrice  uint64       // Price of one access period; zero disables licensing
	LicensePeriod int64        // Access period length in seconds
	MaxSupply     uint64       // Share cap; zero means unlimited
	Proceeds      Proceeds
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if c.PricePerShare == 0 {
		return fmt.Errorf("%w: price per share must be positive", ErrInvalidConfig)
	}
	if c.RevenueUnit == "" || len(c.RevenueUnit) > MaxUnitLen {
		return fmt.Errorf("%w: revenue unit must be 1-%d bytes", ErrInvalidConfig, MaxUnitLen)
	}
	if c.LicensePrice > 0 && c.LicensePeriod <= 0 {
		return fmt.Errorf("%w: license period must be positive", ErrInvalidConfig)
	}
	if c.LicensePeriod < 0 {
		return fmt.Errorf("%w: negative license period", ErrInvalidConfig)
	}
	if c.Proceeds > ProceedsToCreator {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Proceeds)
	}
	return nil
}

// Asset is the immutable part of an asset record.
type Asset struct {
	ID           AssetID
	Seq          uint64           // Registration sequence number
	Creator      revshare.Address // Receives proceeds under ProceedsToCreator
	CreatedAt    int64            // Unix seconds
	MetadataHash [32]byte         // Blob hash of display metadata; zero if none
	Config       Config
}

// HasMetadata reports whether a metadata blob is attached.
func (a Asset) HasMetadata() bool { return a.MetadataHash != [32]byte{} }

// Authorizer decides whether an operator may move an owner's shares.
type Authorizer interface {
	IsApproved(owner, operator revshare.Address) bool
}
