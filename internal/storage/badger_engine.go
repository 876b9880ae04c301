package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerEngine is a durable Engine backed by BadgerDB. It is the reference
// implementation used to prove the in-flight manager's storage contract
// against a real transactional key/value store rather than only a fake.
//
// The synctag counter is process-local (not replayed from the log on
// restart) — durability of the synctag sequence is outside the in-flight
// manager's scope, same as everything else durability-related.
type BadgerEngine struct {
	db      *badger.DB
	syncTag int64
	mu      sync.RWMutex
	closed  bool
}

// OpenBadgerEngine opens (creating if necessary) a BadgerDB store at dir.
func OpenBadgerEngine(dir string) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerEngine{db: db}, nil
}

func (e *BadgerEngine) BeginTransaction(ctx context.Context) (Tx, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	return &badgerTx{
		engine:  e,
		txn:     e.db.NewTransaction(true),
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}, nil
}

func (e *BadgerEngine) NextSyncTag(ctx context.Context) (int64, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return 0, ErrEngineClosed
	}
	return atomic.AddInt64(&e.syncTag, 1), nil
}

func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// badgerTx mirrors the buffer-then-flush shape of a hand-rolled BadgerDB
// transaction wrapper: reads see buffered writes first, writes and deletes
// are only applied to the native badger.Txn when Commit is called.
type badgerTx struct {
	engine  *BadgerEngine
	txn     *badger.Txn
	writes  map[string][]byte
	deletes map[string]bool
	done    bool
}

func (t *badgerTx) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	k := string(key)
	if t.deletes[k] {
		return nil, false, nil
	}
	if v, ok := t.writes[k]; ok {
		return v, true, nil
	}
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (t *badgerTx) Set(ctx context.Context, key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[k] = v
	return nil
}

func (t *badgerTx) Delete(ctx context.Context, key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = true
	return nil
}

// flushBuffered applies buffered deletes then writes to the native
// transaction; deletes win over writes for the same key, matching the
// buffered-write flush order used elsewhere for this store.
func (t *badgerTx) flushBuffered() error {
	for k := range t.deletes {
		if err := t.txn.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range t.writes {
		if t.deletes[k] {
			continue
		}
		if err := t.txn.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTx) Discard(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	return nil
}

func (t *badgerTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("storage: transaction already committed")
	}
	defer t.txn.Discard()
	if err := t.flushBuffered(); err != nil {
		return err
	}
	if err := t.txn.Commit(); err != nil {
		return err
	}
	t.done = true
	return nil
}
