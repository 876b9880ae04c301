package inflight

import "sync/atomic"

// state is the inflight manager's entire mutable picture: every open
// transaction and every document with a pending write. It is never mutated
// in place — cell.update always produces a fresh state built from the one
// it was handed, so a reader that captured an old snapshot never observes
// a partially-applied pipeline (invariants I3/II2).
type state struct {
	transactions map[TxId]transaction
	documents    map[DocID]documentStaging
}

func emptyState() state {
	return state{
		transactions: make(map[TxId]transaction),
		documents:    make(map[DocID]documentStaging),
	}
}

func (s state) cloneTransactions() map[TxId]transaction {
	m := make(map[TxId]transaction, len(s.transactions))
	for k, v := range s.transactions {
		m[k] = v
	}
	return m
}

func (s state) cloneDocuments() map[DocID]documentStaging {
	m := make(map[DocID]documentStaging, len(s.documents))
	for k, v := range s.documents {
		m[k] = v
	}
	return m
}

func cloneOps(ops map[DocID]OperationRecord) map[DocID]OperationRecord {
	m := make(map[DocID]OperationRecord, len(ops))
	for k, v := range ops {
		m[k] = v
	}
	return m
}

func cloneRefs(refs map[TxId]int) map[TxId]int {
	m := make(map[TxId]int, len(refs))
	for k, v := range refs {
		m[k] = v
	}
	return m
}

// cell is the single atomic compare-and-swap cell guarding all inflight
// state. update applies a pure transformation, retrying it against the
// latest snapshot whenever another goroutine wins the race.
type cell struct {
	ptr atomic.Pointer[state]
}

func newCell() *cell {
	c := &cell{}
	s := emptyState()
	c.ptr.Store(&s)
	return c
}

func (c *cell) snapshot() state {
	return *c.ptr.Load()
}

// update retries fn against the freshest observed state until either fn
// returns an error (the update is abandoned, nothing is stored) or the
// compare-and-swap succeeds. fn may perform blocking I/O (loading document
// metadata, next-synctag); on contention the whole pipeline re-runs from its first
// step against the newly observed snapshot.
func (c *cell) update(fn func(state) (state, error)) (state, error) {
	for {
		old := c.ptr.Load()
		next, err := fn(*old)
		if err != nil {
			return state{}, err
		}
		if c.ptr.CompareAndSwap(old, &next) {
			return next, nil
		}
	}
}
