// Package payment defines the external transfer effect the royalty vaults
// run inside their atomic commits, and an in-memory implementation.
package payment

import (
	"context"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// Unit names a revenue unit (a native coin or a token symbol).
type Unit string

// Effect moves value between accounts and the vault escrow. A returned
// error means the transfer did not happen.
type Effect interface {
	// TransferIn collects amount of unit from the payer into escrow.
	TransferIn(ctx context.Context, unit Unit, from revshare.Address, amount uint64) error

	// TransferOut pays amount of unit from escrow to the recipient.
	TransferOut(ctx context.Context, unit Unit, to revshare.Address, amount uint64) error
}

// Direction identifies the side of a transfer.
type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Transfer records one completed transfer.
type Transfer struct {
	Direction Direction
	Unit      Unit
	Account   revshare.Address
	Amount    uint64
}
