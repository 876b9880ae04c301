package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/docdb-inflight/internal/doccodec"
	"github.com/kartikbazzad/docdb-inflight/internal/inflight"
	"github.com/kartikbazzad/docdb-inflight/internal/storage"
	"github.com/kartikbazzad/docdb-inflight/internal/vclock"
)

func recvEvent(t *testing.T, ch <-chan inflight.Event) inflight.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return inflight.Event{}
	}
}

// TestBadgerEngineDrivesInflightManager re-runs the fresh-client-add
// scenario against a real BadgerDB-backed engine, proving the storage
// interface boundary holds for a durable implementation and not only the
// in-memory fake used elsewhere.
func TestBadgerEngineDrivesInflightManager(t *testing.T) {
	dir := t.TempDir()
	engine, err := storage.OpenBadgerEngine(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	h, err := inflight.Create(engine, doccodec.NewMsgpackStore(), "node-a")
	require.NoError(t, err)
	t.Cleanup(h.Close)

	ctx := context.Background()
	events, unsub := h.Subscribe()
	t.Cleanup(unsub)

	tx1, err := h.Open(ctx, inflight.Client)
	require.NoError(t, err)

	status, err := h.AddDocument(ctx, tx1, "a", []byte("hello"), nil)
	require.NoError(t, err)
	require.Equal(t, inflight.StatusWrite, status)

	require.NoError(t, h.Complete(ctx, tx1))

	require.Equal(t, inflight.DocAdded, recvEvent(t, events).Kind)
	require.Equal(t, inflight.Committed, recvEvent(t, events).Kind)

	tx2, err := engine.BeginTransaction(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx2.Discard(ctx) })
	meta, found, err := doccodec.NewMsgpackStore().LoadDocumentMetadata(ctx, tx2, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, meta[doccodec.KeyHistory].(vclock.Clock).Same(vclock.New()))
}
