package wallet

import (
	"sync"

	"github.com/bitfsorg/libroyalty-go/revshare"
)

// Approvals records which operators may move shares on an owner's behalf.
// It is safe for concurrent use.
type Approvals struct {
	mu  sync.RWMutex
	ops map[revshare.Address]map[revshare.Address]struct{}
}

// NewApprovals returns an empty approval set.
func NewApprovals() *Approvals {
	return &Approvals{ops: make(map[revshare.Address]map[revshare.Address]struct{})}
}

// Approve lets operator transfer owner's shares.
func (a *Approvals) Approve(owner, operator revshare.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.ops[owner]
	if !ok {
		set = make(map[revshare.Address]struct{})
		a.ops[owner] = set
	}
	set[operator] = struct{}{}
}

// Revoke withdraws a previous approval.
func (a *Approvals) Revoke(owner, operator revshare.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ops[owner], operator)
	if len(a.ops[owner]) == 0 {
		delete(a.ops, owner)
	}
}

// IsApproved reports whether operator may act for owner. An owner is
// always approved for itself.
func (a *Approvals) IsApproved(owner, operator revshare.Address) bool {
	if owner == operator {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.ops[owner][operator]
	return ok
}
