package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/evkv/evkv/lib/kv"
)

// TestSubmitAndDrain tests basic FIFO submission and batch draining
func TestSubmitAndDrain(t *testing.T) {
	q := New(0)

	for i := 0; i < 10; i++ {
		seq, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: fmt.Sprintf("key-%d", i)})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if seq != uint64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, seq)
		}
	}

	if q.Len() != 10 {
		t.Errorf("expected queue length 10, got %d", q.Len())
	}

	ops := q.DrainAll()
	if len(ops) != 10 {
		t.Fatalf("expected 10 drained operations, got %d", len(ops))
	}

	for i, op := range ops {
		if op.Key != fmt.Sprintf("key-%d", i) {
			t.Errorf("operation %d out of order: got key %s", i, op.Key)
		}
		if op.Seq != uint64(i+1) {
			t.Errorf("operation %d has seq %d, expected %d", i, op.Seq, i+1)
		}
	}

	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain, has %d", q.Len())
	}
}

// TestDrainEmpty tests draining an empty queue
func TestDrainEmpty(t *testing.T) {
	q := New(0)

	ops := q.DrainAll()
	if len(ops) != 0 {
		t.Errorf("draining an empty queue should return nothing, got %d ops", len(ops))
	}
}

// TestBoundedQueue tests the optional capacity bound
func TestBoundedQueue(t *testing.T) {
	q := New(2)

	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "a"}); err != nil {
		t.Fatalf("Submit 1 failed: %v", err)
	}
	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "b"}); err != nil {
		t.Fatalf("Submit 2 failed: %v", err)
	}

	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "c"}); err != kv.ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	// Draining frees capacity again
	q.DrainAll()
	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "c"}); err != nil {
		t.Errorf("Submit after drain should succeed, got %v", err)
	}
}

// TestClosedQueue tests that a closed queue rejects submissions but still drains
func TestClosedQueue(t *testing.T) {
	q := New(0)

	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "a"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	q.Close()

	if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: "b"}); err != kv.ErrQueueClosed {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}

	ops := q.DrainAll()
	if len(ops) != 1 || ops[0].Key != "a" {
		t.Errorf("queued operations should survive Close for a final drain, got %v", ops)
	}
}

// TestConcurrentProducers verifies that sequence tags match drain order under contention
func TestConcurrentProducers(t *testing.T) {
	q := New(0)

	const numProducers = 10
	const opsPerProducer = 1000

	var wg sync.WaitGroup
	wg.Add(numProducers)

	for p := 0; p < numProducers; p++ {
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < opsPerProducer; i++ {
				key := fmt.Sprintf("p%d-key%d", producer, i%10)
				if _, err := q.Submit(kv.Operation{Type: kv.OpInsert, Key: key}); err != nil {
					t.Errorf("Submit failed: %v", err)
					return
				}
			}
		}(p)
	}

	wg.Wait()

	ops := q.DrainAll()
	if len(ops) != numProducers*opsPerProducer {
		t.Fatalf("expected %d operations, got %d", numProducers*opsPerProducer, len(ops))
	}

	// Drain order must be exactly ascending sequence order: the tags are
	// assigned under the same lock that orders the append.
	for i, op := range ops {
		if op.Seq != uint64(i+1) {
			t.Fatalf("operation %d has seq %d, drain order diverged from submission order", i, op.Seq)
		}
	}
}
