package revshare

import (
	"errors"
	"fmt"
	"math"

	"github.com/bitfsorg/libroyalty-go/fixedpoint"
)

// Ledger tracks share balances and revenue entitlement for one asset.
//
// Entitlement uses a magnified accumulator: every deposit raises
// AccPerShare by amount*SCALE/TotalShares, and each holder carries a signed
// correction so that
//
//	accumulated = (Balance*AccPerShare + Correction) / SCALE
//
// stays unchanged across mints and moves. No operation visits other holders.
//
// A Ledger is not safe for concurrent use; callers serialize access.
type Ledger struct {
	header  Header
	holders map[Address]Holder
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		header:  emptyHeader(),
		holders: make(map[Address]Holder),
	}
}

// Load rebuilds a ledger from persisted records. The sum of holder
// balances must equal the header's TotalShares.
func Load(header Header, holders map[Address]Holder) (*Ledger, error) {
	if header.AccPerShare.IsNil() {
		header.AccPerShare = fixedpoint.Zero()
	}
	l := &Ledger{header: header, holders: make(map[Address]Holder, len(holders))}
	var sum uint64
	for addr, h := range holders {
		if h.Correction.IsNil() {
			h.Correction = fixedpoint.Zero()
		}
		if sum > math.MaxUint64-h.Balance {
			return nil, fmt.Errorf("%w: holder balances overflow", ErrInvariantViolation)
		}
		sum += h.Balance
		l.holders[addr] = h
	}
	if sum != header.TotalShares {
		return nil, fmt.Errorf("%w: balances sum to %d, total shares %d",
			ErrInvariantViolation, sum, header.TotalShares)
	}
	return l, nil
}

// Header returns the asset-level record.
func (l *Ledger) Header() Header { return l.header }

// Holder returns the record for account (zero record if unknown).
func (l *Ledger) Holder(account Address) Holder {
	if h, ok := l.holders[account]; ok {
		return h
	}
	return emptyHolder()
}

// TotalShares returns the number of shares issued.
func (l *Ledger) TotalShares() uint64 { return l.header.TotalShares }

// AccPerShare returns the magnified revenue-per-share accumulator.
func (l *Ledger) AccPerShare() fixedpoint.Int { return l.header.AccPerShare }

// BalanceOf returns the shares held by account.
func (l *Ledger) BalanceOf(account Address) uint64 { return l.Holder(account).Balance }

// Mint issues amount new shares to account. The account's correction is
// lowered by AccPerShare*amount so the new shares carry no entitlement to
// revenue deposited before they existed.
func (l *Ledger) Mint(account Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.header.TotalShares > math.MaxUint64-amount {
		return fmt.Errorf("%w: total shares %d + %d", ErrOverflow, l.header.TotalShares, amount)
	}
	debt, err := fixedpoint.Mul(l.header.AccPerShare, fixedpoint.FromUint64(amount))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	h := l.Holder(account)
	corr, err := fixedpoint.Sub(h.Correction, debt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}

	h.Correction = corr
	h.Balance += amount
	l.holders[account] = h
	l.header.TotalShares += amount
	return nil
}

// MoveShares moves amount shares from one account to another. Entitlement
// already accrued stays with the sender; only future deposits follow the
// shares.
func (l *Ledger) MoveShares(from, to Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	src := l.Holder(from)
	if src.Balance < amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientShares, src.Balance, amount)
	}
	if from == to {
		return nil
	}
	dst := l.Holder(to)

	delta, err := fixedpoint.Mul(l.header.AccPerShare, fixedpoint.FromUint64(amount))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	srcCorr, err := fixedpoint.Add(src.Correction, delta)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	dstCorr, err := fixedpoint.Sub(dst.Correction, delta)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}

	src.Correction = srcCorr
	src.Balance -= amount
	dst.Correction = dstCorr
	dst.Balance += amount
	l.holders[from] = src
	l.holders[to] = dst
	return nil
}

// Deposit distributes amount across all outstanding shares.
// The division remainder is never credited to anyone and stays with the
// ledger as dust.
func (l *Ledger) Deposit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.header.TotalShares == 0 {
		return ErrNoShares
	}
	if l.header.TotalDeposited > math.MaxUint64-amount {
		return fmt.Errorf("%w: total deposited %d + %d", ErrOverflow, l.header.TotalDeposited, amount)
	}
	inc, err := fixedpoint.MulDiv(fixedpoint.FromUint64(amount), fixedpoint.Scale(),
		fixedpoint.FromUint64(l.header.TotalShares))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	acc, err := fixedpoint.Add(l.header.AccPerShare, inc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}

	l.header.AccPerShare = acc
	l.header.TotalDeposited += amount
	return nil
}

// Accumulated returns the total entitlement of account, withdrawn or not.
func (l *Ledger) Accumulated(account Address) (uint64, error) {
	return l.accumulated(l.Holder(account))
}

func (l *Ledger) accumulated(h Holder) (uint64, error) {
	num, err := fixedpoint.Mul(fixedpoint.FromUint64(h.Balance), l.header.AccPerShare)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	num, err = fixedpoint.Add(num, h.Correction)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	if num.IsNegative() {
		return 0, fmt.Errorf("%w: negative accumulated entitlement", ErrInvariantViolation)
	}
	v, err := fixedpoint.ToUint64(fixedpoint.Descale(num))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	return v, nil
}

// Withdrawable returns what account can claim right now.
func (l *Ledger) Withdrawable(account Address) (uint64, error) {
	h := l.Holder(account)
	acc, err := l.accumulated(h)
	if err != nil {
		return 0, err
	}
	if acc < h.Withdrawn {
		return 0, fmt.Errorf("%w: withdrawn %d exceeds accumulated %d",
			ErrInvariantViolation, h.Withdrawn, acc)
	}
	return acc - h.Withdrawn, nil
}

// Claim marks the full withdrawable amount of account as paid and returns
// it. The caller performs the payout. ErrNothingToClaim leaves the ledger
// untouched.
func (l *Ledger) Claim(account Address) (uint64, error) {
	amount, err := l.Withdrawable(account)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrNothingToClaim
	}
	if l.header.TotalClaimed > math.MaxUint64-amount {
		return 0, fmt.Errorf("%w: total claimed %d + %d", ErrOverflow, l.header.TotalClaimed, amount)
	}
	h := l.Holder(account)
	h.Withdrawn += amount
	l.holders[account] = h
	l.header.TotalClaimed += amount
	return amount, nil
}

// CheckAccount verifies the per-account invariant withdrawable >= 0.
func (l *Ledger) CheckAccount(account Address) error {
	_, err := l.Withdrawable(account)
	if err != nil && !errors.Is(err, ErrInvariantViolation) {
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	return err
}
