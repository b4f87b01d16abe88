package reconciler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/evkv/evkv/lib/kv"
	"github.com/evkv/evkv/lib/kv/expiry"
	"github.com/evkv/evkv/lib/kv/queue"
	"github.com/evkv/evkv/lib/kv/snapmap"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Constants and Options
// --------------------------------------------------------------------------

const defaultInterval = 10 * time.Millisecond

// Reconciler state: exactly Idle or Reconciling, never anything in between.
const (
	stateIdle int32 = iota
	stateReconciling
)

// Options configures the Reconciler behavior during initialization.
type Options struct {
	Interval time.Duration    // Time between ticks (0 = use default: 10ms)
	Clock    func() time.Time // Time source (nil = time.Now), injectable for tests
	Name     string           // Metrics label, e.g. the shard ID (empty = "default")
}

// DefaultOptions returns the default Reconciler options.
func DefaultOptions() *Options {
	return &Options{
		Interval: defaultInterval,
		Clock:    time.Now,
		Name:     "default",
	}
}

// --------------------------------------------------------------------------
// Reconciler Type
// --------------------------------------------------------------------------

// Reconciler is the single periodic task that owns the write side of the
// snapshot map. Each tick drains the pending queue, applies the operations in
// submission order, evicts due keys via the expiry index, and publishes a new
// snapshot in one atomic step.
//
// The Reconciler is strictly serial: one tick must finish before the next may
// begin. A tick that comes due while the previous one is still running is
// skipped (not queued) and counted as an overrun - that delays eviction and
// publication but never blocks producers, whose submissions go through an
// independent queue lock.
type Reconciler struct {
	q      *queue.Queue
	writer *snapmap.Writer
	index  *expiry.Index

	interval time.Duration
	clock    func() time.Time

	state       atomic.Int32
	running     atomic.Bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	outstanding atomic.Int64 // expiry index size as of the last tick

	// observability
	ticks        *metrics.Counter
	overruns     *metrics.Counter
	opsApplied   *metrics.Counter
	keysExpired  *metrics.Counter
	staleRecords *metrics.Counter
}

// New creates a Reconciler draining q into the map owned through writer,
// scheduling TTLs in index. The writer handle must be owned exclusively by
// this Reconciler; handing the same writer to anything else voids the
// single-publisher guarantee.
func New(q *queue.Queue, writer *snapmap.Writer, index *expiry.Index, opts *Options) *Reconciler {
	if opts == nil {
		opts = DefaultOptions()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}

	return &Reconciler{
		q:            q,
		writer:       writer,
		index:        index,
		interval:     interval,
		clock:        clock,
		ticks:        metrics.GetOrCreateCounter(fmt.Sprintf(`evkv_reconciler_ticks_total{store=%q}`, name)),
		overruns:     metrics.GetOrCreateCounter(fmt.Sprintf(`evkv_reconciler_overruns_total{store=%q}`, name)),
		opsApplied:   metrics.GetOrCreateCounter(fmt.Sprintf(`evkv_reconciler_ops_applied_total{store=%q}`, name)),
		keysExpired:  metrics.GetOrCreateCounter(fmt.Sprintf(`evkv_reconciler_keys_expired_total{store=%q}`, name)),
		staleRecords: metrics.GetOrCreateCounter(fmt.Sprintf(`evkv_reconciler_stale_records_total{store=%q}`, name)),
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start launches the timer-driven reconciliation loop.
// If the loop is already running, this function does nothing.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Reconciler) Start() {
	if r.running.CompareAndSwap(false, true) {
		r.stopCh = make(chan struct{})
		r.doneCh = make(chan struct{})
		go r.loop()
	}
}

// Stop terminates the reconciliation loop and waits for an in-progress tick
// to finish. Operations still queued at that point stay queued; callers that
// want them applied run a final TickOnce after Stop.
// If the loop is not running, this function does nothing.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Reconciler) Stop() {
	if r.running.CompareAndSwap(true, false) {
		close(r.stopCh)
		<-r.doneCh
	}
}

// Running reports whether the timer-driven loop is active.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// loop fires TickOnce on the configured period until stopped. If a tick
// overruns its period the next firing is simply delayed - time.Ticker drops
// ticks it could not deliver, it never queues them up.
func (r *Reconciler) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			start := r.clock()
			r.TickOnce()
			if elapsed := r.clock().Sub(start); elapsed > r.interval {
				r.overruns.Inc()
				Logger.Warningf("reconciliation tick overran its period: took %s, interval is %s", elapsed, r.interval)
			}
		}
	}
}

// --------------------------------------------------------------------------
// The Reconciliation Protocol
// --------------------------------------------------------------------------

// TickOnce runs a single reconciliation cycle: drain, apply, expire, publish.
// It is the manual entry point used by tests and by shutdown flushes; the
// timer loop calls the same code.
//
// If another tick is still in progress the call returns immediately without
// doing anything (counted as an overrun) - reconciliation is never concurrent.
//
// Thread-safety: This method is thread-safe; concurrent calls degrade to a
// single executing tick.
func (r *Reconciler) TickOnce() {
	if !r.state.CompareAndSwap(stateIdle, stateReconciling) {
		r.overruns.Inc()
		return
	}
	defer r.state.Store(stateIdle)

	now := r.clock().UnixNano()

	// 1. Drain everything that producers have queued up to this instant.
	ops := r.q.DrainAll()

	// 2. Apply in submission order. Order matters: a later write to the
	// same key must win over an earlier one.
	for _, op := range ops {
		r.apply(op, now)
	}
	if len(ops) > 0 {
		r.opsApplied.Add(len(ops))
	}

	// 3. Evict due keys.
	r.expire(now)

	// 4. Make the tick's cumulative effect visible in one atomic step.
	r.writer.Publish()
	r.outstanding.Store(int64(r.index.Len()))
	r.ticks.Inc()
}

// apply executes one drained operation against the write-side buffer.
func (r *Reconciler) apply(op kv.Operation, now int64) {
	switch op.Type {
	case kv.OpInsert:
		r.writer.Upsert(op.Key, kv.Entry{Value: op.Value, Seq: op.Seq})
	case kv.OpInsertTTL:
		expiresAt := now + op.TTL.Nanoseconds()
		r.writer.Upsert(op.Key, kv.Entry{Value: op.Value, ExpiresAt: expiresAt, Seq: op.Seq})
		r.index.Schedule(op.Key, expiresAt)
	case kv.OpDelete:
		r.writer.Delete(op.Key)
	default:
		Logger.Errorf("dropping operation with unknown type: %s", op)
	}
}

// expire pops due records and evicts the keys they govern.
//
// A popped record evicts its key only if the entry's current expiry timestamp
// matches the record's exactly. A mismatch means the key was overwritten or
// deleted after the record was scheduled - the record is stale and is
// discarded without touching the entry. This is the guard that keeps a
// refreshed key from being evicted by its old TTL.
func (r *Reconciler) expire(now int64) {
	for {
		record, ok := r.index.PeekMin()
		if !ok || record.ExpiresAt > now {
			return
		}
		record, _ = r.index.PopMin()

		entry, ok := r.writer.Lookup(record.Key)
		if ok && entry.ExpiresAt == record.ExpiresAt {
			r.writer.Delete(record.Key)
			r.keysExpired.Inc()
		} else {
			r.staleRecords.Inc()
		}
	}
}

// --------------------------------------------------------------------------
// Diagnostics
// --------------------------------------------------------------------------

// OutstandingRecords returns the number of records the expiry index held
// after the last completed tick, stale ones included.
//
// Thread-safety: This method is thread-safe; the value lags a tick behind.
func (r *Reconciler) OutstandingRecords() int {
	return int(r.outstanding.Load())
}
