package inflight

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kartikbazzad/docdb-inflight/internal/doccodec"
	"github.com/kartikbazzad/docdb-inflight/internal/vclock"
)

// AddDocument stages a write of doc under id within txid, carrying any
// caller-supplied metadata (the "history" entry, if present, is the
// incoming causal history to classify against the document's last-known
// one). It returns the classification the write received. The
// classification is fixed at staging time: it is not revisited if the
// transaction whose history it was classified against is later aborted.
func (h *Handle) AddDocument(ctx context.Context, txid TxId, id DocID, doc []byte, metadata Metadata) (Status, error) {
	rec, err := h.stage(ctx, txid, id, OpAdd, doc, metadata)
	if err != nil {
		return 0, err
	}
	return rec.Status, nil
}

// DeleteDocument stages a delete of id within txid. It follows the same
// write-request pipeline as AddDocument; a delete can itself be classified
// as a conflict if a concurrent write has moved the document's history
// ahead of what the caller supplied.
func (h *Handle) DeleteDocument(ctx context.Context, txid TxId, id DocID, metadata Metadata) (Status, error) {
	rec, err := h.stage(ctx, txid, id, OpDelete, nil, metadata)
	if err != nil {
		return 0, err
	}
	return rec.Status, nil
}

// stage runs the write-request pipeline shared by AddDocument and
// DeleteDocument: (a) ensure the operation carries a causal history, (b)
// classify it against the document's last-known history, (c) advance that
// history for a client write and allocate a synctag, (d) update the
// per-transaction op log and the document's staging record. The whole
// pipeline runs as a single cell.update closure and is re-executed in full
// on every CAS retry, including its storage reads — there is no
// partial-progress state to resume from.
func (h *Handle) stage(ctx context.Context, txid TxId, id DocID, kind OperationKind, doc []byte, metadata Metadata) (OperationRecord, error) {
	supplied := cloneMetadata(metadata)

	var result OperationRecord
	_, err := h.state.update(func(s state) (state, error) {
		txn, ok := s.transactions[txid]
		if !ok {
			return state{}, ErrUnknownTransaction
		}

		persisted, persistedFound, err := h.docs.LoadDocumentMetadata(ctx, txn.tx, id)
		if err != nil {
			return state{}, &StorageError{Op: "load-document-metadata", Err: err}
		}

		// (a) ensure history: prior write in this tx, then persisted
		// history, then a fresh empty clock.
		history, suppliedHistory := supplied[doccodec.KeyHistory].(vclock.Clock)
		if !suppliedHistory {
			if prior, ok := txn.ops[id]; ok {
				history = prior.history()
			} else if persistedFound {
				history, _ = persisted[doccodec.KeyHistory].(vclock.Clock)
			} else {
				history = vclock.New()
			}
		}

		// (b) classify against the document's last-known history. A
		// documentStaging record can exist with hasHistory false — a prior
		// skip or conflict creates the record to carry refs but never stamps
		// currentHistory — so that case must still fall through to the
		// persisted history below.
		staged, existedBefore := s.documents[id]
		var current vclock.Clock
		currentKnown := false
		if existedBefore && staged.hasHistory {
			current = staged.currentHistory
			currentKnown = true
		} else if persistedFound {
			if ph, ok := persisted[doccodec.KeyHistory].(vclock.Clock); ok {
				current = ph
				currentKnown = true
			}
		}
		status := classify(txn.source, currentKnown, current, history)

		recMeta := cloneMetadata(supplied)
		recMeta[doccodec.KeyHistory] = history

		// (c) advance history (client only) and allocate a synctag.
		syncTag, err := h.db.NextSyncTag(ctx)
		if err != nil {
			return state{}, &StorageError{Op: "next-synctag", Err: err}
		}
		if txn.source == Client {
			recMeta[doccodec.KeyHistory] = history.Next(nodeTag(h.serverID, txid))
		}
		recMeta[doccodec.KeySyncTag] = syncTag

		rec := OperationRecord{
			Request:  kind,
			ID:       id,
			Document: doc,
			Metadata: recMeta,
			Status:   status,
		}

		// (d) update the transaction's op log and the document's staging
		// record.
		_, alreadyStagedInTx := txn.ops[id]

		txs := s.cloneTransactions()
		ops := cloneOps(txn.ops)
		ops[id] = rec
		txn.ops = ops
		txs[txid] = txn

		docs := s.cloneDocuments()
		entry := staged
		if entry.refs == nil {
			entry.refs = make(map[TxId]int)
		} else {
			entry.refs = cloneRefs(entry.refs)
		}
		// refs is a refcount over distinct (TxId) referrers, not a literal
		// per-op multiset: a second stage on the same doc within the same tx
		// must not inflate the count cleanup later decrements by exactly one.
		if !alreadyStagedInTx {
			entry.refs[txid]++
		}
		if !staged.hasHistory && status == StatusWrite {
			checkHistoryAdvanceOnWriteOnly(status, true)
			entry.currentHistory = recMeta[doccodec.KeyHistory].(vclock.Clock)
			entry.hasHistory = true
		}
		docs[id] = entry

		result = rec
		next := state{transactions: txs, documents: docs}
		checkOpsRefsConsistent(next, txid, txn)
		checkDocumentPresenceConsistent(next, id)
		return next, nil
	})
	if err != nil {
		return OperationRecord{}, err
	}

	h.metrics.recordClassified(result.Status)
	h.log.Debug("operation staged",
		zap.Uint64("tx_id", uint64(txid)),
		zap.String("doc_id", string(id)),
		zap.String("kind", kind.String()),
		zap.String("status", result.Status.String()),
	)
	return result, nil
}

func nodeTag(serverID string, txid TxId) string {
	return fmt.Sprintf("%s#%d", serverID, txid)
}

func cloneMetadata(m Metadata) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
