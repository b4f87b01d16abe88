// Package expiry provides the expiry index of the key-value core: a priority
// structure ordered by absolute expiration timestamp, consulted only by the
// reconciler.
//
// This implementation is a binary min-heap over (expiresAt, key) records.
// Records are strictly ordered by expiresAt ascending; ties between records
// with the identical timestamp are broken arbitrarily.
//
// Unlike a keyed priority queue, the index deliberately allows multiple
// outstanding records for the same key: when a key is re-inserted with a new
// TTL, the old record stays in the heap and is discarded lazily when it
// surfaces, by comparing its timestamp against the entry's current one (the
// staleness guard in the reconciler). Removing or updating records in place
// would reintroduce a key-to-record map and buy nothing, since only drained
// records are ever evaluated.
//
// Concurrency Considerations:
//   - This implementation is not thread-safe. The reconciler is its only
//     caller, so no synchronization is applied.
package expiry

import (
	"container/heap"
	"fmt"
)

// Record schedules one expiry check: the key's entry is due for evaluation
// once ExpiresAt (Unix nanoseconds) has passed.
type Record struct {
	ExpiresAt int64
	Key       string
}

func (r Record) String() string {
	return fmt.Sprintf("Record{Key: %q, ExpiresAt: %d}", r.Key, r.ExpiresAt)
}

// recordHeap implements heap.Interface as a min-heap by ExpiresAt.
type recordHeap []Record

func (h recordHeap) Len() int            { return len(h) }
func (h recordHeap) Less(i, j int) bool  { return h[i].ExpiresAt < h[j].ExpiresAt }
func (h recordHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *recordHeap) Push(x interface{}) { *h = append(*h, x.(Record)) }

func (h *recordHeap) Pop() interface{} {
	old := *h
	n := len(old)
	record := old[n-1]
	*h = old[:n-1]
	return record
}

// Index is the min-ordered expiry index.
type Index struct {
	records recordHeap
}

// New creates an empty expiry index.
func New() *Index {
	idx := &Index{records: make(recordHeap, 0)}
	heap.Init(&idx.records)
	return idx
}

// Schedule inserts an expiry record for the key. Scheduling the same key
// again does not replace earlier records; stale ones are discarded when
// popped (see package doc).
func (idx *Index) Schedule(key string, expiresAt int64) {
	heap.Push(&idx.records, Record{ExpiresAt: expiresAt, Key: key})
}

// PeekMin returns the record with the smallest expiration timestamp without
// removing it. The boolean is false if the index is empty.
func (idx *Index) PeekMin() (Record, bool) {
	if len(idx.records) == 0 {
		return Record{}, false
	}
	return idx.records[0], true
}

// PopMin removes and returns the record with the smallest expiration
// timestamp. The boolean is false if the index is empty.
func (idx *Index) PopMin() (Record, bool) {
	if len(idx.records) == 0 {
		return Record{}, false
	}
	return heap.Pop(&idx.records).(Record), true
}

// Len returns the number of outstanding records, including stale ones that
// have not surfaced yet.
func (idx *Index) Len() int {
	return len(idx.records)
}
