package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrEngineClosed is returned once Close has been called on the engine.
var ErrEngineClosed = errors.New("storage: engine is closed")

// MemoryEngine is an in-process, non-durable Engine backed by a single
// shared map. It exists for fast unit tests of the in-flight manager; it
// makes no crash-recovery or persistence claims (out of scope per the
// storage engine's contract).
type MemoryEngine struct {
	mu      sync.Mutex
	data    map[string][]byte
	syncTag int64
	closed  bool
}

// NewMemoryEngine returns a ready-to-use in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{data: make(map[string][]byte)}
}

func (e *MemoryEngine) BeginTransaction(ctx context.Context) (Tx, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}
	return &memoryTx{
		engine:  e,
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}, nil
}

func (e *MemoryEngine) NextSyncTag(ctx context.Context) (int64, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrEngineClosed
	}
	e.mu.Unlock()
	return atomic.AddInt64(&e.syncTag, 1), nil
}

func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// memoryTx buffers writes and deletes, flushing them into the engine's
// shared map atomically on Commit — the same buffer-then-flush shape a
// real transactional KV store uses.
type memoryTx struct {
	engine  *MemoryEngine
	writes  map[string][]byte
	deletes map[string]bool
	done    bool
}

func (t *memoryTx) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	k := string(key)
	if t.deletes[k] {
		return nil, false, nil
	}
	if v, ok := t.writes[k]; ok {
		return v, true, nil
	}
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	v, ok := t.engine.data[k]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *memoryTx) Set(ctx context.Context, key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[k] = v
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = true
	return nil
}

func (t *memoryTx) Discard(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("storage: transaction already committed")
	}
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	if t.engine.closed {
		return ErrEngineClosed
	}
	for k := range t.deletes {
		delete(t.engine.data, k)
	}
	for k, v := range t.writes {
		t.engine.data[k] = v
	}
	t.done = true
	return nil
}
