package snapmap

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/evkv/evkv/lib/kv"
)

// TestWriterSingleAcquisition verifies that only one write handle can ever be obtained
func TestWriterSingleAcquisition(t *testing.T) {
	m := NewMap()

	w, ok := m.Writer()
	if !ok || w == nil {
		t.Fatal("first Writer() call should succeed")
	}

	if _, ok := m.Writer(); ok {
		t.Error("second Writer() call should fail")
	}
}

// TestReadsSeePublishedStateOnly verifies that mutations are invisible until Publish
func TestReadsSeePublishedStateOnly(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	w.Upsert("key", kv.Entry{Value: []byte("value")})

	if _, ok := m.Get("key"); ok {
		t.Error("unpublished write should not be visible to readers")
	}

	w.Publish()

	value, ok := m.Get("key")
	if !ok {
		t.Fatal("published write should be visible to readers")
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Errorf("expected value %q, got %q", "value", value)
	}
}

// TestGetReturnsCopy verifies that a reader cannot corrupt the stored value
func TestGetReturnsCopy(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	w.Upsert("key", kv.Entry{Value: []byte("value")})
	w.Publish()

	retrieved, _ := m.Get("key")
	retrieved[0] = 'X'

	original, _ := m.Get("key")
	if bytes.Equal(retrieved, original) {
		t.Error("Get should return a copy, not a reference to the stored value")
	}
}

// TestBufferConvergence verifies that both buffers track the full key set across publishes
func TestBufferConvergence(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	// First publish: key a+b land in buffer 1
	w.Upsert("a", kv.Entry{Value: []byte("1")})
	w.Upsert("b", kv.Entry{Value: []byte("2")})
	w.Publish()

	// Second publish: buffer roles have swapped. If the replay were
	// missing, "a" and "b" would vanish now.
	w.Upsert("c", kv.Entry{Value: []byte("3")})
	w.Delete("b")
	w.Publish()

	if v, ok := m.Get("a"); !ok || !bytes.Equal(v, []byte("1")) {
		t.Errorf("expected a=1 after second publish, got %q (found=%v)", v, ok)
	}
	if _, ok := m.Get("b"); ok {
		t.Error("deleted key b should not be visible")
	}
	if v, ok := m.Get("c"); !ok || !bytes.Equal(v, []byte("3")) {
		t.Errorf("expected c=3 after second publish, got %q (found=%v)", v, ok)
	}

	// Third publish with no mutations: state must survive another swap.
	w.Publish()

	if _, ok := m.Get("a"); !ok {
		t.Error("key a should survive an empty publish")
	}
	if _, ok := m.Get("b"); ok {
		t.Error("key b should stay deleted after an empty publish")
	}
}

// TestLookupSeesHiddenBuffer verifies that the writer reads its own unpublished state
func TestLookupSeesHiddenBuffer(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	w.Upsert("key", kv.Entry{Value: []byte("value"), ExpiresAt: 42})

	entry, ok := w.Lookup("key")
	if !ok {
		t.Fatal("Lookup should see an unpublished upsert")
	}
	if entry.ExpiresAt != 42 {
		t.Errorf("expected ExpiresAt 42, got %d", entry.ExpiresAt)
	}

	w.Delete("key")
	if _, ok := w.Lookup("key"); ok {
		t.Error("Lookup should not see a key deleted in the hidden buffer")
	}
}

// TestDeleteAbsentKey verifies that deleting a missing key is a harmless no-op
func TestDeleteAbsentKey(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	w.Delete("ghost")
	w.Publish()

	if _, ok := m.Get("ghost"); ok {
		t.Error("deleted absent key should not exist")
	}
	if m.Len() != 0 {
		t.Errorf("map should be empty, has %d entries", m.Len())
	}
}

// TestRange verifies snapshot iteration over the published state
func TestRange(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	for i := 0; i < 10; i++ {
		w.Upsert(fmt.Sprintf("key-%d", i), kv.Entry{Value: []byte{byte(i)}})
	}
	w.Publish()

	seen := make(map[string]bool)
	m.Range(func(key string, entry kv.Entry) bool {
		seen[key] = true
		return true
	})

	if len(seen) != 10 {
		t.Errorf("expected 10 entries in range, got %d", len(seen))
	}

	// Early exit
	count := 0
	m.Range(func(key string, entry kv.Entry) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Errorf("range should stop when fn returns false, visited %d", count)
	}
}

// TestConcurrentReadersDuringPublish stresses the acquire/publish protocol
func TestConcurrentReadersDuringPublish(t *testing.T) {
	m := NewMap()
	w, _ := m.Writer()

	w.Upsert("key", kv.Entry{Value: []byte("v0")})
	w.Publish()

	const numReaders = 8
	const numPublishes = 500

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(numReaders)

	// Readers hammer Get while the writer publishes continuously. Every
	// read must observe one of the values that was ever published for the
	// key, never a missing key and never a torn value.
	for r := 0; r < numReaders; r++ {
		go func() {
			defer wg.Done()
			for !stop.Load() {
				value, ok := m.Get("key")
				if !ok {
					t.Error("key should always be present")
					return
				}
				if len(value) < 2 || value[0] != 'v' {
					t.Errorf("unexpected value %q", value)
					return
				}
			}
		}()
	}

	for i := 1; i <= numPublishes; i++ {
		w.Upsert("key", kv.Entry{Value: []byte(fmt.Sprintf("v%d", i))})
		w.Publish()
	}

	stop.Store(true)
	wg.Wait()

	value, _ := m.Get("key")
	expected := fmt.Sprintf("v%d", numPublishes)
	if !bytes.Equal(value, []byte(expected)) {
		t.Errorf("expected final value %q, got %q", expected, value)
	}
}
