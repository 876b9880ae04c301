//go:build debug

package inflight

import "fmt"

// checkOpsRefsConsistent verifies II2: every DocId referenced by a
// transaction's ops also carries that TxId in its refs.
func checkOpsRefsConsistent(s state, txid TxId, txn transaction) {
	for id := range txn.ops {
		entry, ok := s.documents[id]
		if !ok {
			panic(fmt.Sprintf("inflight invariant: doc %q staged by tx %d has no staging record", id, txid))
		}
		if entry.refs[txid] <= 0 {
			panic(fmt.Sprintf("inflight invariant: doc %q missing ref for tx %d", id, txid))
		}
	}
}

// checkDocumentPresenceConsistent verifies I3: a DocId appears in
// documents iff some open transaction has staged an op for it.
func checkDocumentPresenceConsistent(s state, id DocID) {
	entry, present := s.documents[id]
	referenced := false
	for _, txn := range s.transactions {
		if _, ok := txn.ops[id]; ok {
			referenced = true
			break
		}
	}
	if present != referenced {
		panic(fmt.Sprintf("inflight invariant: doc %q presence (%v) disagrees with reference state (%v), refs=%v", id, present, referenced, entry.refs))
	}
}

// checkTxIDMonotonic verifies I5: a newly minted TxId was never issued
// before.
func checkTxIDMonotonic(s state, id TxId) {
	if _, exists := s.transactions[id]; exists {
		panic(fmt.Sprintf("inflight invariant: tx id %d reissued", id))
	}
}

// checkHistoryAdvanceOnWriteOnly verifies I4: current-history only moves
// on a write classification.
func checkHistoryAdvanceOnWriteOnly(status Status, historyChanged bool) {
	if historyChanged && status != StatusWrite {
		panic(fmt.Sprintf("inflight invariant: current-history advanced on a %s classification", status))
	}
}
