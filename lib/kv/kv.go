package kv

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrQueueFull is returned by Submit when a bounded pending queue has
	// reached its capacity. Only possible if the queue was created with a
	// capacity > 0.
	ErrQueueFull = errors.New("pending queue is full")

	// ErrQueueClosed is returned by Submit after the queue has been closed
	// during shutdown.
	ErrQueueClosed = errors.New("pending queue is closed")
)

// --------------------------------------------------------------------------
// Operation Type (pending mutation)
// --------------------------------------------------------------------------

// OpType identifies the kind of a pending operation.
type OpType uint8

const (
	OpInsert    OpType = iota // Upsert a key-value pair without expiry
	OpInsertTTL               // Upsert a key-value pair with a time-to-live
	OpDelete                  // Remove a key-value pair
)

func (t OpType) String() string {
	switch t {
	case OpInsert:
		return "Insert"
	case OpInsertTTL:
		return "InsertTTL"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Operation is a single pending mutation submitted by a producer and applied
// by the reconciler. Operations are immutable once enqueued.
//
// Seq is a monotonically increasing sequence tag assigned by the pending
// queue at submission time. Because it is assigned under the queue lock,
// sequence order is exactly submission order: the reconciler applies
// operations in ascending Seq, which gives last-writer-wins per key.
type Operation struct {
	Type  OpType
	Key   string
	Value []byte
	TTL   time.Duration // Only used for OpInsertTTL
	Seq   uint64        // Assigned by the queue, zero before submission
}

func (op Operation) String() string {
	return fmt.Sprintf("Operation{Type: %s, Key: %q, Seq: %d}", op.Type, op.Key, op.Seq)
}

// --------------------------------------------------------------------------
// Entry Type (stored key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry is a stored value with its expiry metadata.
//
// ExpiresAt is an absolute timestamp in Unix nanoseconds, or 0 for entries
// that never expire. The reconciler's staleness guard compares ExpiresAt for
// exact equality with the scheduled expiry record, so the value must be
// carried unchanged through publish and replay.
type Entry struct {
	Value     []byte
	ExpiresAt int64  // Absolute expiry timestamp (UnixNano), 0 = never
	Seq       uint64 // Sequence tag of the operation that wrote this entry
}

// --------------------------------------------------------------------------
// Store Diagnostics
// --------------------------------------------------------------------------

// StoreInfo is a point-in-time diagnostic summary of a store. All size values
// are estimates; see the estore package for how they are sampled.
type StoreInfo struct {
	Keys              int         `json:"keys"`
	SizeBytes         int         `json:"size_bytes"`
	PendingOps        int         `json:"pending_ops"`
	ExpiryRecords     int         `json:"expiry_records"`
	ReconcilerRunning bool        `json:"reconciler_running"`
	Metadata          interface{} `json:"metadata,omitempty"`
}
