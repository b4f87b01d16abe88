// Package snapmap implements a double-buffered map that gives readers
// lock-free access to an immutable, point-in-time snapshot of all key-value
// pairs while a single writer mutates a hidden buffer and periodically
// publishes it.
//
// Key Features:
//   - Non-blocking reads: readers never take a lock and are never delayed by
//     writer activity, only pin the published buffer with an atomic refcount
//   - Atomic publish: a snapshot switch is a single atomic pointer swap, a
//     reader observes either the complete old or the complete new state
//   - Exclusive write side: Map.Writer() hands out the mutation handle exactly
//     once, eliminating writer-writer races by construction
//   - Convergent buffers: every applied mutation is recorded in an operation
//     log and replayed into the other buffer on publish, so both buffers
//     independently track the full key set
//
// Write Path:
//
// The Writer applies mutations (Upsert, Delete) to the hidden buffer. Readers
// do not observe them until Publish() swaps the buffers. Publish then waits
// until no reader still holds the swapped-out buffer and replays the log into
// it. Because reads are a map lookup plus a value copy, this wait is short;
// the writer spins with exponential runtime.Gosched backoff rather than
// parking.
//
// Staleness Semantics:
//
// Get reflects the most recently published state, not the most recently
// applied one. The delay between a mutation and its visibility is bounded by
// the publish cadence of the owning reconciler, not by this package.
//
// Thread Safety:
//
// All Map methods are safe for concurrent use. The Writer is not synchronized
// and must be confined to one goroutine; the once-only Writer() accessor makes
// a second write handle unobtainable rather than merely discouraged.
package snapmap
