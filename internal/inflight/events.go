package inflight

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

// EventKind identifies what happened during a transaction's lifecycle.
type EventKind int

const (
	DocAdded EventKind = iota
	DocDeleted
	Committed
)

func (k EventKind) String() string {
	switch k {
	case DocAdded:
		return "doc-added"
	case DocDeleted:
		return "doc-deleted"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Event is one entry in the ordered lifecycle stream. DocID is the zero
// value for a Committed event, which closes out a transaction rather than
// naming a document.
type Event struct {
	Kind EventKind
	TxID TxId
	DocID DocID
}

// Broadcaster fans a single ordered producer stream out to any number of
// subscribers without ever blocking the producer. A single goroutine drains
// the producer queue in order and copies each event to every subscriber's
// buffered channel, dropping the event for subscribers that have fallen
// behind rather than stalling the whole broadcast.
type Broadcaster struct {
	out chan Event
	done chan struct{}

	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	subBuf  int
	dropped func()
}

// newBroadcaster starts the single dispatch loop, preferring to run it on
// the supplied ants pool so event delivery shares the same bounded
// background-work budget as the rest of the manager; if the pool is nil or
// Submit returns an error (a released pool, or a non-blocking pool at
// capacity), it falls back to a dedicated goroutine so delivery is never
// silently disabled. A blocking pool at capacity makes Submit wait.
func newBroadcaster(pool *ants.Pool, outBuf, subBuf int, onDropped func()) *Broadcaster {
	b := &Broadcaster{
		out:     make(chan Event, outBuf),
		done:    make(chan struct{}),
		subs:    make(map[int]chan Event),
		subBuf:  subBuf,
		dropped: onDropped,
	}
	dispatch := func() {
		for ev := range b.out {
			b.fanOut(ev)
		}
		close(b.done)
	}
	if pool == nil || pool.Submit(dispatch) != nil {
		go dispatch()
	}
	return b
}

func (b *Broadcaster) fanOut(ev Event) {
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// publish enqueues ev for asynchronous delivery. It never blocks: if the
// producer queue itself is full, the event is dropped rather than stalling
// the caller.
func (b *Broadcaster) publish(ev Event) {
	select {
	case b.out <- ev:
	default:
		if b.dropped != nil {
			b.dropped()
		}
	}
}

// Subscribe returns a channel that receives every event published from
// this moment forward, and an unsubscribe function that closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.subBuf)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Close stops the dispatch loop and closes every subscriber channel. The
// owner must not publish after Close.
func (b *Broadcaster) Close() {
	close(b.out)
	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
