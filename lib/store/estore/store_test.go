package estore

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/evkv/evkv/lib/store"
)

// newManualStore returns a store without a running background loop,
// driven exclusively by TickOnce
func newManualStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// TestSetGetRoundtrip verifies a write becomes readable after a tick
func TestSetGetRoundtrip(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	if err := s.Set("key", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, loaded, _ := s.Get("key"); loaded {
		t.Error("write should not be visible before a tick")
	}

	s.TickOnce()

	value, loaded, err := s.Get("key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !loaded {
		t.Fatal("write should be visible after a tick")
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Errorf("expected %q, got %q", "value", value)
	}
}

// TestGetMissing verifies reading an absent key
func TestGetMissing(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	value, loaded, err := s.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded {
		t.Error("absent key should not be loaded")
	}
	if value != nil {
		t.Errorf("absent key should yield nil value, got %q", value)
	}
}

// TestDelete verifies delete removes a key after the next tick
func TestDelete(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	s.Set("key", []byte("value"))
	s.TickOnce()

	if err := s.Delete("key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Still visible until the tick applies the delete
	if _, loaded, _ := s.Get("key"); !loaded {
		t.Error("key should stay visible until the delete is reconciled")
	}

	s.TickOnce()
	if _, loaded, _ := s.Get("key"); loaded {
		t.Error("key should be gone after the delete is reconciled")
	}
}

// TestDeleteMissingKey verifies deleting an absent key succeeds
func TestDeleteMissingKey(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	if err := s.Delete("missing"); err != nil {
		t.Fatalf("deleting an absent key should be accepted: %v", err)
	}
	s.TickOnce()
}

// TestSetTTLRejectsNonPositive verifies SetTTL validates its ttl argument
func TestSetTTLRejectsNonPositive(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	for _, ttl := range []time.Duration{0, -time.Second} {
		err := s.SetTTL("key", []byte("value"), ttl)
		if err == nil {
			t.Fatalf("SetTTL(%v) should fail", ttl)
		}
		var storeErr *store.Error
		if !errors.As(err, &storeErr) {
			t.Fatalf("expected *store.Error, got %T", err)
		}
		if storeErr.Code != store.RetCInvalidOperation {
			t.Errorf("expected RetCInvalidOperation, got %d", storeErr.Code)
		}
	}
}

// TestSetTTLExpires verifies a key with TTL disappears after the deadline
func TestSetTTLExpires(t *testing.T) {
	clock := struct {
		mu  sync.Mutex
		now time.Time
	}{now: time.Unix(1000, 0)}

	opts := DefaultOptions()
	opts.Clock = func() time.Time {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return clock.now
	}
	s := newManualStore(t, opts)

	s.SetTTL("key", []byte("value"), 100*time.Millisecond)
	s.TickOnce()

	if _, loaded, _ := s.Get("key"); !loaded {
		t.Fatal("key should be visible before its TTL passes")
	}

	clock.mu.Lock()
	clock.now = clock.now.Add(200 * time.Millisecond)
	clock.mu.Unlock()

	s.TickOnce()
	if _, loaded, _ := s.Get("key"); loaded {
		t.Error("key should be evicted after its TTL passed")
	}
}

// TestBoundedQueueRejection verifies the opt-in capacity limit surfaces as RetCQueueFull
func TestBoundedQueueRejection(t *testing.T) {
	opts := DefaultOptions()
	opts.QueueCapacity = 2
	s := newManualStore(t, opts)

	if err := s.Set("a", nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("b", nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err := s.Set("c", nil)
	if err == nil {
		t.Fatal("third write should be rejected by a queue of capacity 2")
	}
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCQueueFull {
		t.Errorf("expected RetCQueueFull, got %v", err)
	}

	// Draining frees the capacity again
	s.TickOnce()
	if err := s.Set("c", nil); err != nil {
		t.Errorf("write after drain should succeed: %v", err)
	}
}

// TestCloseFlushesPending verifies Close applies queued writes and rejects new ones
func TestCloseFlushesPending(t *testing.T) {
	s := newManualStore(t, DefaultOptions())

	s.Set("key", []byte("value"))
	s.Close()

	// The shutdown flush made the pending write visible
	if _, loaded, _ := s.Get("key"); !loaded {
		t.Error("pending write should be applied by the shutdown flush")
	}

	err := s.Set("late", nil)
	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCShutdown {
		t.Errorf("write after Close should fail with RetCShutdown, got %v", err)
	}

	// Reads keep working
	if _, _, err := s.Get("key"); err != nil {
		t.Errorf("Get after Close should succeed: %v", err)
	}
}

// TestNegativeQueueCapacity verifies option validation in New
func TestNegativeQueueCapacity(t *testing.T) {
	opts := DefaultOptions()
	opts.QueueCapacity = -1
	if _, err := New(opts); err == nil {
		t.Fatal("New should reject a negative queue capacity")
	}
}

// TestGetInfo verifies the diagnostic snapshot
func TestGetInfo(t *testing.T) {
	opts := DefaultOptions()
	opts.Name = "info-test"
	s := newManualStore(t, opts)

	for i := 0; i < 10; i++ {
		s.Set(fmt.Sprintf("key-%d", i), bytes.Repeat([]byte("x"), 100))
	}
	s.Set("pending", nil)

	info, err := s.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Keys != 0 {
		t.Errorf("expected 0 visible keys before a tick, got %d", info.Keys)
	}
	if info.PendingOps != 11 {
		t.Errorf("expected 11 pending ops, got %d", info.PendingOps)
	}
	if info.ReconcilerRunning {
		t.Error("reconciler should not report running")
	}

	s.TickOnce()

	info, _ = s.GetInfo()
	if info.Keys != 11 {
		t.Errorf("expected 11 visible keys, got %d", info.Keys)
	}
	if info.PendingOps != 0 {
		t.Errorf("expected 0 pending ops after a tick, got %d", info.PendingOps)
	}
	if info.SizeBytes == 0 {
		t.Error("size sample should not be zero for a populated store")
	}
	md, _ := info.Metadata.(map[string]string)
	if md["name"] != "info-test" {
		t.Errorf("expected store name in metadata, got %q", md["name"])
	}
}

// TestBackgroundLoop verifies Start/Stop with the timer-driven reconciler
func TestBackgroundLoop(t *testing.T) {
	opts := DefaultOptions()
	opts.ReconcileInterval = time.Millisecond
	s := newManualStore(t, opts)

	s.Start()
	defer s.Close()

	if info, _ := s.GetInfo(); !info.ReconcilerRunning {
		t.Error("reconciler should report running after Start")
	}

	s.Set("key", []byte("value"))

	deadline := time.After(time.Second)
	for {
		if _, loaded, _ := s.Get("key"); loaded {
			break
		}
		select {
		case <-deadline:
			t.Fatal("write did not become visible within a second")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	if info, _ := s.GetInfo(); info.ReconcilerRunning {
		t.Error("reconciler should report stopped after Stop")
	}
}

// TestConcurrentReadersAndWriters stresses the full store under load
func TestConcurrentReadersAndWriters(t *testing.T) {
	opts := DefaultOptions()
	opts.ReconcileInterval = time.Millisecond
	s := newManualStore(t, opts)
	s.Start()
	defer s.Close()

	const numWriters = 4
	const numReaders = 4
	const opsPerWorker = 2000

	var wg sync.WaitGroup
	wg.Add(numWriters + numReaders)

	for w := 0; w < numWriters; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("key-%d-%d", id, i%100)
				if i%10 == 0 {
					if err := s.Delete(key); err != nil {
						t.Errorf("Delete failed: %v", err)
						return
					}
				} else {
					if err := s.Set(key, []byte{byte(i)}); err != nil {
						t.Errorf("Set failed: %v", err)
						return
					}
				}
			}
		}(w)
	}

	for r := 0; r < numReaders; r++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("key-%d-%d", id%numWriters, i%100)
				if _, _, err := s.Get(key); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}(r)
	}

	wg.Wait()
}
