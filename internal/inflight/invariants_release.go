//go:build !debug

package inflight

func checkOpsRefsConsistent(s state, txid TxId, txn transaction) {
	_ = s
	_ = txid
	_ = txn
}

func checkDocumentPresenceConsistent(s state, id DocID) {
	_ = s
	_ = id
}

func checkTxIDMonotonic(s state, id TxId) {
	_ = s
	_ = id
}

func checkHistoryAdvanceOnWriteOnly(status Status, historyChanged bool) {
	_ = status
	_ = historyChanged
}
