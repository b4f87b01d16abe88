package queue

import (
	"sync"

	"github.com/evkv/evkv/lib/kv"
)

// Queue is the pending operation queue: a mutex-guarded FIFO written by many
// producers and drained by exactly one consumer (the reconciler).
//
// The lock is held only for the append or the slice swap, never across map
// mutation, so a slow reconciliation tick can delay visibility but can never
// block a producer's Submit.
type Queue struct {
	mu       sync.Mutex
	ops      []kv.Operation
	seq      uint64
	capacity int // 0 = unbounded
	closed   bool
}

// New creates a pending queue. A capacity of 0 leaves the queue unbounded,
// which matches the base design; a positive capacity enables the optional
// backpressure hardening where Submit rejects with kv.ErrQueueFull instead of
// growing without bound under reconciler overload.
func New(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Submit appends an operation and returns the sequence tag assigned to it.
// The tag increases monotonically in lock acquisition order, so the order of
// tags is exactly the order in which operations will later be applied.
//
// Submit never blocks on map state, only on queue contention. The returned
// tag is an acceptance receipt, not a visibility guarantee: the operation
// takes effect with a later reconciliation tick.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) Submit(op kv.Operation) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, kv.ErrQueueClosed
	}
	if q.capacity > 0 && len(q.ops) >= q.capacity {
		return 0, kv.ErrQueueFull
	}

	q.seq++
	op.Seq = q.seq
	q.ops = append(q.ops, op)
	return op.Seq, nil
}

// DrainAll atomically removes and returns every queued operation in
// submission order. This is the sole way operations leave the queue; no
// operation is ever partially drained.
//
// Thread-safety: This method is thread-safe, but by contract only the single
// reconciler calls it.
func (q *Queue) DrainAll() []kv.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.ops
	q.ops = nil
	return ops
}

// Len returns the number of currently queued operations.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close rejects all further submissions. Operations already queued stay
// available for a final drain.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
