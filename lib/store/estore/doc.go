// Package estore implements an in-memory, eventually consistent key-value
// store based on the store.IStore interface. Writes are accepted into a
// pending queue and applied in batches by a single background reconciler;
// reads go straight to an immutable snapshot without taking any lock. Data
// is stored entirely in memory and is not persisted between process
// restarts.
//
// Key Features:
//   - Lock-free reads against a published snapshot
//   - Fire-and-forget writes with bounded (opt-in) or unbounded queueing
//   - Per-key time-to-live expiration with lazy eviction
//   - Manual tick driving for deterministic tests
//   - Prometheus-style counters for reconciler observability
//
// Consistency Model:
//
//	A write call returning nil means the operation was accepted, not that it
//	is visible. All writes accepted before a reconciliation tick become
//	visible together, atomically, when that tick publishes. Two reads with
//	no tick between them always see the same state. Writes to the same key
//	resolve in submission order, so the last accepted write wins.
//
// TTL Semantics:
//
//	A TTL is measured from the tick that applies the write, not from the
//	moment of submission. Expiry is lazy: an entry past its deadline stays
//	readable until the next tick evicts it. Overwriting a key re-arms or
//	clears its TTL; the old deadline can no longer evict the new value.
//
// Lifecycle:
//
//	store, _ := estore.New(estore.DefaultOptions())
//	store.Start()
//	defer store.Close()
//
//	_ = store.Set("session:123", sessionData)
//	_ = store.SetTTL("token:456", tokenData, 5*time.Minute)
//	value, exists, _ := store.Get("session:123")
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Any number of goroutines may
//	read and queue writes at the same time; the reconciler is the only
//	goroutine that ever mutates the map.
//
// Suitable Use Cases:
//
//	The eventual store is ideal for read-heavy workloads that tolerate a
//	short visibility delay: caches, session state, feature flags, presence
//	data. Workloads that need read-your-writes should not use it.
package estore
