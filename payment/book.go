package payment

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// Hook is consulted before every transfer. A non-nil error aborts the
// transfer and is returned to the caller.
type Hook func(t Transfer) error

type balanceKey struct {
	unit    Unit
	account revshare.Address
}

// Book is an in-memory multi-unit account book with a single escrow reserve
// per unit. It implements Effect and is safe for concurrent use.
type Book struct {
	mu       sync.Mutex
	balances map[balanceKey]uint64
	reserve  map[Unit]uint64
	journal  []Transfer
	hook     Hook
}

// Compile-time interface check.
var _ Effect = (*Book)(nil)

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		balances: make(map[balanceKey]uint64),
		reserve:  make(map[Unit]uint64),
	}
}

// SetHook installs h; nil removes any hook.
func (b *Book) SetHook(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = h
}

// Credit adds amount of unit to account, outside of any vault.
func (b *Book) Credit(unit Unit, account revshare.Address, amount uint64) error {
	if unit == "" {
		return ErrInvalidUnit
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := balanceKey{unit, account}
	if b.balances[k] > math.MaxUint64-amount {
		return ErrOverflow
	}
	b.balances[k] += amount
	return nil
}

// Balance returns the free balance of account in unit.
func (b *Book) Balance(unit Unit, account revshare.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[balanceKey{unit, account}]
}

// Reserve returns the escrowed amount of unit.
func (b *Book) Reserve(unit Unit) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reserve[unit]
}

// Journal returns a copy of all completed transfers in order.
func (b *Book) Journal() []Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Transfer(nil), b.journal...)
}

// TransferIn moves amount from the payer's balance into the unit reserve.
func (b *Book) TransferIn(ctx context.Context, unit Unit, from revshare.Address, amount uint64) error {
	return b.apply(ctx, Transfer{Direction: In, Unit: unit, Account: from, Amount: amount})
}

// TransferOut moves amount from the unit reserve to the recipient.
func (b *Book) TransferOut(ctx context.Context, unit Unit, to revshare.Address, amount uint64) error {
	return b.apply(ctx, Transfer{Direction: Out, Unit: unit, Account: to, Amount: amount})
}

func (b *Book) apply(ctx context.Context, t Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Unit == "" {
		return ErrInvalidUnit
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hook != nil {
		if err := b.hook(t); err != nil {
			return err
		}
	}

	k := balanceKey{t.Unit, t.Account}
	switch t.Direction {
	case In:
		if b.balances[k] < t.Amount {
			return fmt.Errorf("%w: %s has %d %s, needs %d",
				ErrInsufficientFunds, t.Account, b.balances[k], t.Unit, t.Amount)
		}
		if b.reserve[t.Unit] > math.MaxUint64-t.Amount {
			return ErrOverflow
		}
		b.balances[k] -= t.Amount
		b.reserve[t.Unit] += t.Amount
	case Out:
		if b.reserve[t.Unit] < t.Amount {
			return fmt.Errorf("%w: reserve %d %s, payout %d",
				ErrInsufficientReserve, b.reserve[t.Unit], t.Unit, t.Amount)
		}
		if b.balances[k] > math.MaxUint64-t.Amount {
			return ErrOverflow
		}
		b.reserve[t.Unit] -= t.Amount
		b.balances[k] += t.Amount
	}
	b.journal = append(b.journal, t)
	return nil
}
