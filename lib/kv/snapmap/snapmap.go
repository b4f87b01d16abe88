package snapmap

import (
	"runtime"
	"sync/atomic"

	"github.com/evkv/evkv/lib/kv"
)

// --------------------------------------------------------------------------
// Buffer Type (one side of the double buffer)
// --------------------------------------------------------------------------

// buffer is one of the two map buffers. The visible buffer is read by any
// number of concurrent readers; the hidden buffer is mutated by the single
// writer. readers counts in-flight reads so the writer knows when a buffer
// that was just swapped out is safe to mutate again.
type buffer struct {
	data    map[string]kv.Entry
	readers atomic.Int64
}

// --------------------------------------------------------------------------
// Map Type (reader side)
// --------------------------------------------------------------------------

// Map is a double-buffered associative structure. Readers always observe the
// most recently published state; they never see a half-applied mutation and
// never block on the writer.
type Map struct {
	visible     atomic.Pointer[buffer]
	writerTaken atomic.Bool
}

// NewMap creates an empty Map with both buffers initialized.
func NewMap() *Map {
	m := &Map{}
	m.visible.Store(&buffer{data: make(map[string]kv.Entry)})
	return m
}

// acquire pins the currently visible buffer for reading. The refcount is
// incremented first and the pointer re-checked afterwards: if a publish swapped
// the buffer out in between, the increment is undone and the load retried.
// This guarantees that once acquire returns, the writer's drain loop in
// Publish will observe the refcount and wait before mutating the buffer.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Map) acquire() *buffer {
	for {
		buf := m.visible.Load()
		buf.readers.Add(1)
		if m.visible.Load() == buf {
			return buf
		}
		// Lost the race with a publish, the writer may already be
		// replaying into this buffer. No data was read, so just retry.
		buf.readers.Add(-1)
	}
}

// release unpins a buffer previously returned by acquire.
func (m *Map) release(buf *buffer) {
	buf.readers.Add(-1)
}

// Get retrieves the entry's value for a key from the published snapshot.
// The boolean return value indicates whether a value for the key was found.
// The returned value is a copy of the stored data and therefore safe to use
// and modify.
//
// Note: Get reflects the most recently *published* state, not the most
// recently applied one, and does not evaluate TTLs itself - an entry whose
// expiry timestamp has passed is returned unchanged until the reconciler
// evicts it (lazy expiry).
//
// Thread-safety: This method is thread-safe, lock-free with respect to the
// writer and can be called concurrently.
func (m *Map) Get(key string) ([]byte, bool) {
	buf := m.acquire()
	defer m.release(buf)

	entry, ok := buf.data[key]
	if !ok {
		return nil, false
	}

	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return value, true
}

// GetEntry retrieves the full entry (value plus expiry metadata) for a key
// from the published snapshot. The returned entry shares no memory with the
// stored one.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Map) GetEntry(key string) (kv.Entry, bool) {
	buf := m.acquire()
	defer m.release(buf)

	entry, ok := buf.data[key]
	if !ok {
		return kv.Entry{}, false
	}

	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	entry.Value = value
	return entry, true
}

// Range calls fn for every entry of the published snapshot until fn returns
// false. The iteration runs over a single consistent snapshot: entries
// published after Range started are not observed. Intended for diagnostics,
// not for the hot read path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// fn must not call back into the writer.
func (m *Map) Range(fn func(key string, entry kv.Entry) bool) {
	buf := m.acquire()
	defer m.release(buf)

	for key, entry := range buf.data {
		if !fn(key, entry) {
			return
		}
	}
}

// Len returns the number of entries in the published snapshot.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Map) Len() int {
	buf := m.acquire()
	defer m.release(buf)
	return len(buf.data)
}

// --------------------------------------------------------------------------
// Writer Type (write side, exclusively owned)
// --------------------------------------------------------------------------

// mutation is one applied operation recorded for replay into the other buffer.
type mutation struct {
	key   string
	entry kv.Entry
	del   bool
}

// Writer is the exclusive mutation handle of a Map. At most one Writer can
// ever be obtained per Map, which serializes all publishes by construction:
// no external synchronization of the write side is needed as long as the
// Writer is confined to a single goroutine (the reconciler).
type Writer struct {
	m      *Map
	hidden *buffer
	log    []mutation
}

// Writer returns the exclusive write handle for the map. The second and any
// further call returns false, enforcing the single-writer contract.
func (m *Map) Writer() (*Writer, bool) {
	if !m.writerTaken.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Writer{
		m:      m,
		hidden: &buffer{data: make(map[string]kv.Entry)},
	}, true
}

// Upsert inserts or overwrites the entry for a key in the hidden buffer.
// The change becomes visible to readers with the next Publish.
func (w *Writer) Upsert(key string, entry kv.Entry) {
	w.hidden.data[key] = entry
	w.log = append(w.log, mutation{key: key, entry: entry})
}

// Delete removes the entry for a key from the hidden buffer. Deleting an
// absent key is a no-op (still recorded, replay is idempotent).
func (w *Writer) Delete(key string) {
	delete(w.hidden.data, key)
	w.log = append(w.log, mutation{key: key, del: true})
}

// Lookup returns the entry for a key as the hidden buffer currently sees it,
// i.e. including all mutations applied since the last publish. Used by the
// reconciler's expiry check, which must evaluate the freshest state rather
// than the published one.
func (w *Writer) Lookup(key string) (kv.Entry, bool) {
	entry, ok := w.hidden.data[key]
	return entry, ok
}

// Pending returns the number of mutations applied since the last publish.
func (w *Writer) Pending() int {
	return len(w.log)
}

// Publish atomically swaps the hidden buffer to become the visible one. From
// the readers' perspective the swap is a single atomic pointer store: a read
// observes either the complete old state or the complete new state, never a
// mix.
//
// After the swap, Publish waits for in-flight readers of the old buffer to
// drain and then replays the recorded mutation log into it, so both buffers
// converge. This replay is the cost of the double-buffer design: it is
// O(mutations since last publish), which bounds how large a reconciliation
// batch should grow before read-path staleness becomes noticeable.
//
// Thread-safety: This method must not be called concurrently with other
// Writer methods. Exclusive Writer ownership provides this.
func (w *Writer) Publish() {
	old := w.m.visible.Swap(w.hidden)

	// Wait for in-flight readers of the swapped-out buffer. Reads are
	// short (a map lookup plus a copy), so spin with backoff instead of
	// parking the goroutine.
	var backoff uint8
	for old.readers.Load() != 0 {
		if backoff < 10 {
			backoff++
		}
		for i := 0; i < 1<<backoff; i++ {
			runtime.Gosched()
		}
	}

	// Replay the operation history so the old buffer catches up with the
	// one just published.
	for _, mut := range w.log {
		if mut.del {
			delete(old.data, mut.key)
		} else {
			old.data[mut.key] = mut.entry
		}
	}

	w.hidden = old
	w.log = w.log[:0]
}
