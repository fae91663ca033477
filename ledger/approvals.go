package ledger

import (
	"fmt"

	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
)

// PrefixApproval prefixes operator approval records:
// o/ + owner(20) + operator(20) -> 0x01.
var PrefixApproval = []byte("o/")

func approvalKey(owner, operator revshare.Address) []byte {
	k := make([]byte, 0, len(PrefixApproval)+2*revshare.AddressSize)
	k = append(k, PrefixApproval...)
	k = append(k, owner[:]...)
	return append(k, operator[:]...)
}

func (l *Ledger) loadApprovals() error {
	want := len(PrefixApproval) + 2*revshare.AddressSize
	n := 0
	err := l.store.IteratePrefix(PrefixApproval, func(key, _ []byte) error {
		if len(key) != want {
			return fmt.Errorf("%w: approval key %x", ErrInvalidRecord, key)
		}
		var owner, operator revshare.Address
		copy(owner[:], key[len(PrefixApproval):])
		copy(operator[:], key[len(PrefixApproval)+revshare.AddressSize:])
		l.approvals.Approve(owner, operator)
		n++
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: load approvals: %w", err)
	}
	l.log.Debug("approvals loaded", "count", n)
	return nil
}

// Approve lets operator move owner's shares in every vault. The approval
// is persisted and survives reopening the ledger.
func (l *Ledger) Approve(owner, operator revshare.Address) error {
	return l.setApproval(owner, operator, true)
}

// Revoke withdraws an approval granted by Approve.
func (l *Ledger) Revoke(owner, operator revshare.Address) error {
	return l.setApproval(owner, operator, false)
}

func (l *Ledger) setApproval(owner, operator revshare.Address, approved bool) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if owner == operator {
		return fmt.Errorf("%w: owner cannot approve itself", ErrInvalidApproval)
	}

	l.approveMu.Lock()
	defer l.approveMu.Unlock()

	b := storage.NewBatch()
	if approved {
		b.Put(approvalKey(owner, operator), []byte{1})
	} else {
		b.Delete(approvalKey(owner, operator))
	}
	if err := l.store.Commit(b, nil); err != nil {
		return fmt.Errorf("ledger: save approval: %w", err)
	}

	if approved {
		l.approvals.Approve(owner, operator)
	} else {
		l.approvals.Revoke(owner, operator)
	}
	l.log.Info("operator approval changed", "owner", owner.String(), "operator", operator.String(), "approved", approved)
	return nil
}
