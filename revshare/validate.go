package revshare

import (
	"fmt"
	"math"
	"sort"
)

// AuditReport summarizes a full-ledger audit.
type AuditReport struct {
	Holders         int    // Accounts with a record
	SumBalances     uint64 // Sum of all balances
	SumWithdrawable uint64 // Sum of unclaimed entitlement
	Dust            uint64 // Deposited - claimed - withdrawable
}

// Holders returns every account with a record, sorted bytewise.
// It visits the whole holder set and is meant for audits and export only.
func (l *Ledger) Holders() []Address {
	out := make([]Address, 0, len(l.holders))
	for a := range l.holders {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

// Audit checks every ledger invariant across the full holder set:
// share conservation, non-negative withdrawable balances, and revenue
// conservation (claimed + withdrawable never exceeds deposited).
func (l *Ledger) Audit() (*AuditReport, error) {
	r := &AuditReport{Holders: len(l.holders)}
	for a, h := range l.holders {
		if r.SumBalances > math.MaxUint64-h.Balance {
			return nil, fmt.Errorf("%w: balance sum overflows", ErrInvariantViolation)
		}
		r.SumBalances += h.Balance

		w, err := l.Withdrawable(a)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a, err)
		}
		if r.SumWithdrawable > math.MaxUint64-w {
			return nil, fmt.Errorf("%w: withdrawable sum overflows", ErrInvariantViolation)
		}
		r.SumWithdrawable += w
	}
	if err := ValidateShareConservation(r.SumBalances, l.header.TotalShares); err != nil {
		return nil, err
	}
	dust, err := ValidateRevenueConservation(l.header.TotalClaimed, r.SumWithdrawable, l.header.TotalDeposited)
	if err != nil {
		return nil, err
	}
	r.Dust = dust
	return r, nil
}

// ValidateShareConservation checks that balances add up to total shares.
func ValidateShareConservation(sumBalances, totalShares uint64) error {
	if sumBalances != totalShares {
		return fmt.Errorf("%w: balances=%d total=%d", ErrInvariantViolation, sumBalances, totalShares)
	}
	return nil
}

// ValidateRevenueConservation checks claimed + withdrawable <= deposited
// and returns the undistributed remainder.
func ValidateRevenueConservation(claimed, withdrawable, deposited uint64) (uint64, error) {
	if claimed > math.MaxUint64-withdrawable || claimed+withdrawable > deposited {
		return 0, fmt.Errorf("%w: claimed=%d withdrawable=%d deposited=%d",
			ErrInvariantViolation, claimed, withdrawable, deposited)
	}
	return deposited - claimed - withdrawable, nil
}
