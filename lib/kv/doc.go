// Package kv defines the shared types of the eventually-consistent key-value
// core: the Operation variant submitted to the pending queue, the Entry stored
// in the snapshot map, and the sentinel errors reported at the queue boundary.
//
// The core itself is split over four cooperating packages:
//
//   - snapmap (github.com/evkv/evkv/lib/kv/snapmap) implements the
//     double-buffered snapshot map. Readers observe an immutable published
//     buffer without locking; a single writer mutates the hidden buffer and
//     publishes it atomically.
//
//   - queue (github.com/evkv/evkv/lib/kv/queue) implements the pending
//     operation queue. Any number of producers submit operations under a
//     short-held mutex; the reconciler drains the whole queue as one batch.
//
//   - expiry (github.com/evkv/evkv/lib/kv/expiry) implements the expiry index,
//     a min-heap of (expiresAt, key) records consulted only by the reconciler.
//
//   - reconciler (github.com/evkv/evkv/lib/kv/reconciler) runs the periodic
//     drain-apply-expire-publish cycle that is the only write path into the
//     snapshot map.
//
// Consistency model: writes are eventually consistent. A submitted operation
// becomes visible to readers only after the next reconciliation tick that
// drains it has published. Callers must never assume that a read issued
// directly after a write reflects that write.
//
// The store package (github.com/evkv/evkv/lib/store) defines the API surface
// consumed by transports and clients, and lib/store/estore wires these four
// packages into a ready-to-use store.
package kv
