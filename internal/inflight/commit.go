package inflight

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kartikbazzad/docdb-inflight/internal/doccodec"
)

// Complete is the terminal operation on a transaction: it folds every
// staged operation into the underlying storage transaction according to
// its classification, commits it, garbage-collects the staged state, and
// publishes a committed event. Events for individual ops are emitted
// during the fold, before the storage commit is confirmed — a subscriber
// must treat doc-added/doc-deleted as proposed until it also observes
// committed, since a failed commit does not rescind them. Operations are
// folded in DocID order (lexicographic), not staging order.
func (h *Handle) Complete(ctx context.Context, txid TxId) error {
	snapshot := h.state.snapshot()
	txn, ok := snapshot.transactions[txid]
	if !ok {
		return ErrUnknownTransaction
	}

	for _, id := range sortedDocIDs(txn.ops) {
		op := txn.ops[id]
		if err := h.foldOp(ctx, txn, op); err != nil {
			return &StorageError{Op: "fold-operation", Err: err}
		}
	}

	if err := txn.tx.Commit(ctx); err != nil {
		h.metrics.recordCompleted("commit-failed")
		return &CommitFailed{TxID: txid, Err: err}
	}

	if err := h.releaseTransaction(txid); err != nil {
		return err
	}

	h.events.publish(Event{Kind: Committed, TxID: txid})
	h.metrics.recordCompleted("committed")
	h.log.Debug("transaction completed", zap.Uint64("tx_id", uint64(txid)))
	return nil
}

// Abort discards txid's storage transaction without folding any of its
// staged operations, then runs the same clean-up as Complete. No events
// are emitted — an aborted transaction never happened as far as
// subscribers are concerned.
func (h *Handle) Abort(ctx context.Context, txid TxId) error {
	snapshot := h.state.snapshot()
	txn, ok := snapshot.transactions[txid]
	if !ok {
		return ErrUnknownTransaction
	}

	if err := txn.tx.Discard(ctx); err != nil {
		return &StorageError{Op: "discard-transaction", Err: err}
	}

	if err := h.releaseTransaction(txid); err != nil {
		return err
	}

	h.metrics.recordCompleted("aborted")
	h.log.Debug("transaction aborted", zap.Uint64("tx_id", uint64(txid)))
	return nil
}

func (h *Handle) foldOp(ctx context.Context, txn transaction, op OperationRecord) error {
	switch {
	case op.Status == StatusSkip:
		return nil
	case op.Status == StatusWrite && op.Request == OpAdd:
		if err := h.docs.StoreDocument(ctx, txn.tx, op.ID, op.Document, op.Metadata); err != nil {
			return err
		}
		h.events.publish(Event{Kind: DocAdded, TxID: 0, DocID: op.ID})
	case op.Status == StatusWrite && op.Request == OpDelete:
		if err := h.docs.DeleteDocument(ctx, txn.tx, op.ID, op.Metadata); err != nil {
			return err
		}
		h.events.publish(Event{Kind: DocDeleted, TxID: 0, DocID: op.ID})
	case op.Status == StatusConflict && op.Request == OpAdd:
		if err := h.docs.StoreConflict(ctx, txn.tx, op.ID, op.Document, op.Metadata); err != nil {
			return err
		}
		h.events.publish(Event{Kind: DocAdded, TxID: 0, DocID: op.ID})
	case op.Status == StatusConflict && op.Request == OpDelete:
		if err := h.docs.StoreConflict(ctx, txn.tx, op.ID, doccodec.DeletedSentinel, op.Metadata); err != nil {
			return err
		}
		h.events.publish(Event{Kind: DocDeleted, TxID: 0, DocID: op.ID})
	}
	return nil
}

// releaseTransaction removes txid's transaction record and decrements its
// refcount on every document it touched, dropping document entries whose
// refcount reaches zero. It is a single atomic state update shared by
// Complete and Abort.
func (h *Handle) releaseTransaction(txid TxId) error {
	_, err := h.state.update(func(s state) (state, error) {
		txn, ok := s.transactions[txid]
		if !ok {
			return state{}, ErrUnknownTransaction
		}

		txs := s.cloneTransactions()
		delete(txs, txid)

		docs := s.cloneDocuments()
		for id := range txn.ops {
			entry, ok := docs[id]
			if !ok {
				continue
			}
			entry.refs = cloneRefs(entry.refs)
			entry.refs[txid]--
			if entry.refs[txid] <= 0 {
				delete(entry.refs, txid)
			}
			if len(entry.refs) == 0 {
				delete(docs, id)
			} else {
				docs[id] = entry
			}
		}

		return state{transactions: txs, documents: docs}, nil
	})
	return err
}

func sortedDocIDs(ops map[DocID]OperationRecord) []DocID {
	ids := make([]DocID, 0, len(ops))
	for id := range ops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
