// Package doccodec defines the document layer the in-flight manager stages
// writes against: loading a document's persisted metadata, and folding a
// staged operation into a storage transaction as a write or a conflict
// record.
package doccodec

import (
	"context"

	"github.com/kartikbazzad/docdb-inflight/internal/storage"
)

// DocID identifies a document. It is a defined type so call sites can't
// accidentally pass an arbitrary string where a document identifier is
// expected.
type DocID string

// Metadata carries the recognized history/synctag entries plus arbitrary
// user metadata that passes through untouched.
type Metadata map[string]any

// Recognized metadata keys.
const (
	KeyHistory = "history"
	KeySyncTag = "synctag"
)

// DeletedSentinel is stored in place of a document body when a delete is
// classified as a conflict — the record must still be materialized so the
// conflict is visible, even though there is no live payload.
var DeletedSentinel = []byte("__deleted__")

// Store is the document layer's contract: persist metadata alongside a
// document body, and materialize conflicting writes distinctly from clean
// ones. Implementations must not retain tx beyond the call — the in-flight
// manager owns the transaction's lifetime.
type Store interface {
	// LoadDocumentMetadata returns the persisted metadata for id, or
	// found=false if the document has never been stored.
	LoadDocumentMetadata(ctx context.Context, tx storage.Tx, id DocID) (meta Metadata, found bool, err error)
	StoreDocument(ctx context.Context, tx storage.Tx, id DocID, doc []byte, meta Metadata) error
	DeleteDocument(ctx context.Context, tx storage.Tx, id DocID, meta Metadata) error
	// StoreConflict records docOrSentinel (the document body, or
	// DeletedSentinel for a conflicting delete) as a conflict version
	// rather than overwriting the live document.
	StoreConflict(ctx context.Context, tx storage.Tx, id DocID, docOrSentinel []byte, meta Metadata) error
}
