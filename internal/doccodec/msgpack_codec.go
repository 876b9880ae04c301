package doccodec

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kartikbazzad/docdb-inflight/internal/storage"
	"github.com/kartikbazzad/docdb-inflight/internal/vclock"
)

// MsgpackStore is the reference Store implementation: documents and
// conflict records are MessagePack-encoded and written under simple key
// prefixes in the underlying storage.Tx.
type MsgpackStore struct{}

// NewMsgpackStore returns a ready-to-use MsgpackStore.
func NewMsgpackStore() *MsgpackStore { return &MsgpackStore{} }

type wireMetadata struct {
	History []vclock.Entry `msgpack:"history,omitempty"`
	SyncTag int64          `msgpack:"synctag"`
	Extra   map[string]any `msgpack:"extra,omitempty"`
}

type wireDocument struct {
	Body []byte       `msgpack:"body"`
	Meta wireMetadata `msgpack:"meta"`
}

func docKey(id DocID) []byte     { return []byte("doc:" + string(id)) }
func conflictKey(id DocID) []byte { return []byte("conflict:" + string(id)) }

func toWire(meta Metadata) wireMetadata {
	w := wireMetadata{Extra: make(map[string]any)}
	for k, v := range meta {
		switch k {
		case KeyHistory:
			if c, ok := v.(vclock.Clock); ok {
				w.History = c.Entries()
			}
		case KeySyncTag:
			switch n := v.(type) {
			case int64:
				w.SyncTag = n
			case int:
				w.SyncTag = int64(n)
			}
		default:
			w.Extra[k] = v
		}
	}
	if len(w.Extra) == 0 {
		w.Extra = nil
	}
	return w
}

func fromWire(w wireMetadata) Metadata {
	meta := make(Metadata, len(w.Extra)+2)
	for k, v := range w.Extra {
		meta[k] = v
	}
	meta[KeyHistory] = vclock.FromEntries(w.History)
	meta[KeySyncTag] = w.SyncTag
	return meta
}

func (s *MsgpackStore) LoadDocumentMetadata(ctx context.Context, tx storage.Tx, id DocID) (Metadata, bool, error) {
	raw, found, err := tx.Get(ctx, docKey(id))
	if err != nil || !found {
		return nil, found, err
	}
	var doc wireDocument
	if err := msgpack.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("doccodec: decode %q: %w", id, err)
	}
	return fromWire(doc.Meta), true, nil
}

func (s *MsgpackStore) StoreDocument(ctx context.Context, tx storage.Tx, id DocID, body []byte, meta Metadata) error {
	doc := wireDocument{Body: body, Meta: toWire(meta)}
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("doccodec: encode %q: %w", id, err)
	}
	return tx.Set(ctx, docKey(id), raw)
}

func (s *MsgpackStore) DeleteDocument(ctx context.Context, tx storage.Tx, id DocID, meta Metadata) error {
	return tx.Delete(ctx, docKey(id))
}

func (s *MsgpackStore) StoreConflict(ctx context.Context, tx storage.Tx, id DocID, docOrSentinel []byte, meta Metadata) error {
	doc := wireDocument{Body: docOrSentinel, Meta: toWire(meta)}
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("doccodec: encode conflict %q: %w", id, err)
	}
	return tx.Set(ctx, conflictKey(id), raw)
}
