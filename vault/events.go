package vault

import "github.com/bitfsorg/libroyalty-go/revshare"

// EventKind identifies a committed vault mutation.
type EventKind uint8

const (
	EventPurchase EventKind = iota + 1
	EventTransfer
	EventRoyalties
	EventClaim
	EventProceedsClaim
)

func (k EventKind) String() string {
	switch k {
	case EventPurchase:
		return "purchase"
	case EventTransfer:
		return "transfer"
	case EventRoyalties:
		return "royalties"
	case EventClaim:
		return "claim"
	case EventProceedsClaim:
		return "proceeds_claim"
	default:
		return "unknown"
	}
}

// Event describes a committed mutation. Shares is set for purchases and
// transfers; Amount is in revenue units.
type Event struct {
	Kind         EventKind
	Asset        AssetID
	Account      revshare.Address // Buyer, sender, payer or claimant
	Counterparty revshare.Address // Transfer recipient
	Shares       uint64
	Amount       uint64
}

// Observer receives events after their commit. It runs outside the vault
// lock and may call back into the vault.
type Observer func(Event)
