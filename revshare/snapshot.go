package revshare

// Snapshot captures the header and a set of holder records so that a
// failed multi-step operation can be undone.
type Snapshot struct {
	header  Header
	holders map[Address]*Holder // nil entry: account did not exist
}

// Snapshot records the current header and the records of accounts.
func (l *Ledger) Snapshot(accounts ...Address) Snapshot {
	s := Snapshot{header: l.header, holders: make(map[Address]*Holder, len(accounts))}
	for _, a := range accounts {
		if h, ok := l.holders[a]; ok {
			s.holders[a] = &h
		} else {
			s.holders[a] = nil
		}
	}
	return s
}

// Restore reverts the header and the snapshotted holder records.
func (l *Ledger) Restore(s Snapshot) {
	l.header = s.header
	for a, h := range s.holders {
		if h == nil {
			delete(l.holders, a)
			continue
		}
		l.holders[a] = *h
	}
}
