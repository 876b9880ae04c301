package inflight

import (
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kartikbazzad/docdb-inflight/internal/doccodec"
	"github.com/kartikbazzad/docdb-inflight/internal/storage"
)

const (
	defaultEventQueueSize    = 256
	defaultSubscriberBufSize = 32
	defaultDispatchPoolSize  = 8
)

// Handle is the in-flight transaction manager: it owns the monotonic
// transaction counter, the staging map, and the event broadcast channel.
// All work is driven by callers — the handle holds no background threads
// of its own beyond the event dispatch loop started by Create.
type Handle struct {
	serverID string
	db       storage.Engine
	docs     doccodec.Store

	txCount atomic.Uint64
	state   *cell

	pool    *ants.Pool
	ownPool bool
	events  *Broadcaster
	metrics *metrics
	log     *zap.Logger
}

// Option configures a Handle at construction time.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	registerer   prometheus.Registerer
	pool         *ants.Pool
	eventQueue   int
	subscriberBuf int
}

// WithLogger attaches a structured logger; the default is a no-op logger so
// the library imposes no logging policy on callers who don't configure one.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the handle's metrics against reg instead of a
// private, unregistered registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithDispatchPool runs event dispatch on a caller-supplied ants pool
// instead of the handle's own, so multiple handles can share one bounded
// worker budget.
func WithDispatchPool(pool *ants.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithEventQueueSize overrides the producer-side event queue depth.
func WithEventQueueSize(n int) Option {
	return func(o *options) { o.eventQueue = n }
}

// WithSubscriberBufferSize overrides the per-subscriber channel depth.
func WithSubscriberBufferSize(n int) Option {
	return func(o *options) { o.subscriberBuf = n }
}

// Create returns a fresh Handle with empty state. The event stream is
// immediately live and may be subscribed to before any transaction opens.
func Create(db storage.Engine, docs doccodec.Store, serverID string, opts ...Option) (*Handle, error) {
	o := &options{
		logger:        zap.NewNop(),
		eventQueue:    defaultEventQueueSize,
		subscriberBuf: defaultSubscriberBufSize,
	}
	for _, apply := range opts {
		apply(o)
	}

	h := &Handle{
		serverID: serverID,
		db:       db,
		docs:     docs,
		state:    newCell(),
		log:      o.logger,
	}

	pool := o.pool
	if pool == nil {
		p, err := ants.NewPool(defaultDispatchPoolSize)
		if err != nil {
			return nil, err
		}
		pool = p
		h.ownPool = true
	}
	h.pool = pool

	reg := o.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	h.metrics = newMetrics(reg)

	h.events = newBroadcaster(pool, o.eventQueue, o.subscriberBuf, h.metrics.recordEventDropped)

	return h, nil
}

// Subscribe attaches a new subscriber to the handle's event stream. The
// returned channel receives doc-added, doc-deleted, and committed events
// from the moment of subscription forward, in emission order.
func (h *Handle) Subscribe() (<-chan Event, func()) {
	return h.events.Subscribe()
}

// Close stops the handle's event dispatch and releases its owned worker
// pool. Outstanding transactions should be completed or aborted first —
// Close does not do that for the caller.
func (h *Handle) Close() {
	h.events.Close()
	if h.ownPool {
		h.pool.Release()
	}
}
