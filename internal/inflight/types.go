// Package inflight is the staging layer between clients (and inbound
// replication) and the durable storage engine. It multiplexes many open
// write transactions over a single storage transaction facility, classifies
// each staged write against the document's last-known causal history, and
// publishes an ordered event stream to subscribers.
package inflight

import (
	"github.com/kartikbazzad/docdb-inflight/internal/doccodec"
	"github.com/kartikbazzad/docdb-inflight/internal/storage"
	"github.com/kartikbazzad/docdb-inflight/internal/vclock"
)

// DocID identifies a document.
type DocID = doccodec.DocID

// Metadata carries the recognized history/synctag entries plus arbitrary
// user metadata that passes through untouched.
type Metadata = doccodec.Metadata

// TxId is a process-local, monotonically increasing transaction identifier.
// It is never reused for the lifetime of a Handle.
type TxId uint64

// noTx is the not-a-transaction sentinel; TxId 0 is never handed out by Open.
const noTx TxId = 0

// Source distinguishes a direct client write from an inbound replication
// write; the two are held to different conflict-resolution policies.
type Source int

const (
	// Client is a direct user write, classified strictly: any history that
	// hasn't caught up with the document's current known history is a
	// conflict.
	Client Source = iota
	// Replication is an inbound write from another node, classified
	// tolerantly: a peer that is behind or equal is silently dropped.
	Replication
)

func (s Source) String() string {
	switch s {
	case Client:
		return "client"
	case Replication:
		return "replication"
	default:
		return "unknown"
	}
}

// OperationKind is the kind of write staged for a document.
type OperationKind int

const (
	OpAdd OperationKind = iota
	OpDelete
)

func (k OperationKind) String() string {
	if k == OpDelete {
		return "delete"
	}
	return "add"
}

// Status classifies a staged operation against the document's existing
// causal history.
type Status int

const (
	StatusWrite Status = iota
	StatusSkip
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusWrite:
		return "write"
	case StatusSkip:
		return "skip"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// OperationRecord is a single staged (TxId, DocID) mutation.
type OperationRecord struct {
	Request  OperationKind
	ID       DocID
	Document []byte // absent (nil) for deletes
	Metadata Metadata
	Status   Status
}

func (op OperationRecord) history() vclock.Clock {
	c, _ := op.Metadata[doccodec.KeyHistory].(vclock.Clock)
	return c
}

// transaction is the mutable-by-replacement record for one open TxId. It is
// only ever read or written while holding the containing state as an
// immutable snapshot — see state.go.
type transaction struct {
	tx     storage.Tx
	ops    map[DocID]OperationRecord
	source Source
}

// documentStaging tracks the causal history stamped by the first write
// staged against a document while the record exists (later writes do not
// replace it), and every open transaction that has staged an op against it.
// hasHistory distinguishes "no write has ever stamped currentHistory" from
// "currentHistory happens to be the empty clock" — a skip or conflict op
// still creates this record to carry refs, but must never make its zero
// Clock look like an authoritative last-known history.
type documentStaging struct {
	currentHistory vclock.Clock
	hasHistory     bool
	refs           map[TxId]int // refcount, not a literal multiset
}
