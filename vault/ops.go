package vault

import (
	"context"
	"fmt"
	"math"
	"math/bits"

	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/wallet"
)

// Quote returns the payment required for shares.
func (v *Vault) Quote(shares uint64) (uint64, error) {
	hi, lo := bits.Mul64(shares, v.asset.Config.PricePerShare)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d shares at %d", ErrOverflow, shares, v.asset.Config.PricePerShare)
	}
	return lo, nil
}

// Buy mints shares to buyer against payment collected from buyer.
func (v *Vault) Buy(ctx context.Context, buyer revshare.Address, shares, amount uint64) error {
	if shares == 0 {
		return ErrInvalidAmount
	}
	price, err := v.Quote(shares)
	if err != nil {
		return err
	}
	if amount != price {
		return fmt.Errorf("%w: %d shares cost %d, paid %d", ErrPriceMismatch, shares, price, amount)
	}

	cfg := v.asset.Config
	v.mu.Lock()
	err = v.commit(ctx, mutation{
		accounts: []revshare.Address{buyer},
		apply: func() error {
			total := v.ledger.TotalShares()
			if cfg.MaxSupply > 0 && (total > cfg.MaxSupply || shares > cfg.MaxSupply-total) {
				return fmt.Errorf("%w: %d of %d issued, %d requested",
					ErrSupplyExhausted, total, cfg.MaxSupply, shares)
			}
			if err := v.ledger.Mint(buyer, shares); err != nil {
				return err
			}
			if cfg.Proceeds == ProceedsToCreator {
				if v.creatorProceeds > math.MaxUint64-amount {
					return fmt.Errorf("%w: creator proceeds", ErrOverflow)
				}
				v.creatorProceeds += amount
				return nil
			}
			return v.ledger.Deposit(amount)
		},
		effect: func() error {
			if err := v.deps.Payments.TransferIn(ctx, cfg.RevenueUnit, buyer, amount); err != nil {
				return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
			}
			return nil
		},
	})
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.log.Info("shares purchased", "buyer", buyer.String(), "shares", shares, "paid", amount)
	v.emit(Event{Kind: EventPurchase, Asset: v.asset.ID, Account: buyer, Shares: shares, Amount: amount})
	return nil
}

// Transfer moves shares from one account to another. caller must be from
// or an operator approved by from.
func (v *Vault) Transfer(ctx context.Context, caller, from, to revshare.Address, shares uint64) error {
	if caller != from && (v.deps.Authorizer == nil || !v.deps.Authorizer.IsApproved(from, caller)) {
		return fmt.Errorf("%w: %s may not move shares of %s", ErrUnauthorized, caller, from)
	}
	return v.transfer(ctx, from, to, shares, nil)
}

// TransferSigned moves shares as instructed by a transfer authorization
// signed with the sender's key.
func (v *Vault) TransferSigned(ctx context.Context, auth *wallet.TransferAuthorization) error {
	if auth == nil {
		return fmt.Errorf("%w: authorization", ErrNilParam)
	}
	if AssetID(auth.Asset) != v.asset.ID {
		return ErrAssetMismatch
	}
	if err := auth.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return v.transfer(ctx, auth.From, auth.To, auth.Amount, auth)
}

func (v *Vault) transfer(ctx context.Context, from, to revshare.Address, shares uint64, auth *wallet.TransferAuthorization) error {
	m := mutation{
		accounts: []revshare.Address{from, to},
		apply: func() error {
			return v.ledger.MoveShares(from, to, shares)
		},
	}
	if from == to {
		m.accounts = m.accounts[:1]
	}
	if auth != nil {
		sender := auth.From
		m.nonce = &sender
		move := m.apply
		m.apply = func() error {
			if last := v.nonces[sender]; auth.Nonce <= last {
				return fmt.Errorf("%w: nonce %d, last accepted %d", ErrStaleNonce, auth.Nonce, last)
			}
			if err := move(); err != nil {
				return err
			}
			v.nonces[sender] = auth.Nonce
			return nil
		}
	}

	v.mu.Lock()
	err := v.commit(ctx, m)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.log.Info("shares transferred", "from", from.String(), "to", to.String(), "shares", shares)
	v.emit(Event{Kind: EventTransfer, Asset: v.asset.ID, Account: from, Counterparty: to, Shares: shares})
	return nil
}

// DepositRoyalties collects amount from payer and distributes it across
// all outstanding shares.
func (v *Vault) DepositRoyalties(ctx context.Context, payer revshare.Address, amount uint64) error {
	return v.DepositRoyaltiesWith(ctx, payer, amount, nil)
}

// DepositRoyaltiesWith is DepositRoyalties with extra records staged into
// the same atomic commit.
func (v *Vault) DepositRoyaltiesWith(ctx context.Context, payer revshare.Address, amount uint64, stage Stage) error {
	unit := v.asset.Config.RevenueUnit
	v.mu.Lock()
	err := v.commit(ctx, mutation{
		apply: func() error {
			return v.ledger.Deposit(amount)
		},
		effect: func() error {
			if err := v.deps.Payments.TransferIn(ctx, unit, payer, amount); err != nil {
				return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
			}
			return nil
		},
		stage: stage,
	})
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.log.Info("royalties recorded", "payer", payer.String(), "amount", amount)
	v.emit(Event{Kind: EventRoyalties, Asset: v.asset.ID, Account: payer, Amount: amount})
	return nil
}

// Claim pays account its full withdrawable balance and returns the amount.
// ErrNothingToClaim means there was nothing to pay and nothing changed.
func (v *Vault) Claim(ctx context.Context, account revshare.Address) (uint64, error) {
	unit := v.asset.Config.RevenueUnit
	var amount uint64

	v.mu.Lock()
	err := v.commit(ctx, mutation{
		accounts: []revshare.Address{account},
		apply: func() error {
			var err error
			amount, err = v.ledger.Claim(account)
			return err
		},
		effect: func() error {
			if err := v.deps.Payments.TransferOut(ctx, unit, account, amount); err != nil {
				return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
			}
			return nil
		},
	})
	v.mu.Unlock()
	if err != nil {
		return 0, err
	}

	v.log.Info("dividends claimed", "account", account.String(), "amount", amount)
	v.emit(Event{Kind: EventClaim, Asset: v.asset.ID, Account: account, Amount: amount})
	return amount, nil
}

// ClaimProceeds pays the creator the unclaimed purchase proceeds credited
// under ProceedsToCreator.
func (v *Vault) ClaimProceeds(ctx context.Context, caller revshare.Address) (uint64, error) {
	creator := v.asset.Creator
	if caller != creator {
		return 0, fmt.Errorf("%w: only the creator claims proceeds", ErrUnauthorized)
	}
	unit := v.asset.Config.RevenueUnit
	var amount uint64

	v.mu.Lock()
	err := v.commit(ctx, mutation{
		apply: func() error {
			amount = v.creatorProceeds - v.proceedsClaimed
			if amount == 0 {
				return ErrNothingToClaim
			}
			v.proceedsClaimed = v.creatorProceeds
			return nil
		},
		effect: func() error {
			if err := v.deps.Payments.TransferOut(ctx, unit, creator, amount); err != nil {
				return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
			}
			return nil
		},
	})
	v.mu.Unlock()
	if err != nil {
		return 0, err
	}

	v.log.Info("proceeds claimed", "creator", creator.String(), "amount", amount)
	v.emit(Event{Kind: EventProceedsClaim, Asset: v.asset.ID, Account: creator, Amount: amount})
	return amount, nil
}
