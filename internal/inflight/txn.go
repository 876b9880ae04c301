package inflight

import (
	"context"

	"go.uber.org/zap"
)

// Open begins a new storage transaction and registers it under a fresh
// TxId. The storage transaction is started once, outside the state's
// compare-and-swap loop — unlike the write-request pipeline in staging.go,
// opening a transaction never reads or is invalidated by concurrent state,
// so there is nothing for a CAS retry to re-derive.
func (h *Handle) Open(ctx context.Context, source Source) (TxId, error) {
	stx, err := h.db.BeginTransaction(ctx)
	if err != nil {
		return noTx, &StorageError{Op: "begin-transaction", Err: err}
	}

	id := TxId(h.txCount.Add(1))
	_, err = h.state.update(func(s state) (state, error) {
		checkTxIDMonotonic(s, id)
		txs := s.cloneTransactions()
		txs[id] = transaction{
			tx:     stx,
			ops:    make(map[DocID]OperationRecord),
			source: source,
		}
		return state{transactions: txs, documents: s.documents}, nil
	})
	if err != nil {
		return noTx, err
	}

	h.metrics.recordOpen()
	h.log.Debug("transaction opened", zap.Uint64("tx_id", uint64(id)), zap.String("source", source.String()))
	return id, nil
}
