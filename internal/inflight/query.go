package inflight

// IsRegistered reports whether id has any open transaction referencing it.
func (h *Handle) IsRegistered(id DocID) bool {
	s := h.state.snapshot()
	entry, ok := s.documents[id]
	return ok && len(entry.refs) > 0
}

// IsOpen reports whether txid is currently open — registered via Open and
// not yet completed or aborted.
func (h *Handle) IsOpen(txid TxId) bool {
	s := h.state.snapshot()
	_, ok := s.transactions[txid]
	return ok
}
