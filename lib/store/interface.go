package store

import (
	"fmt"
	"time"

	"github.com/evkv/evkv/lib/kv"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with a key-value store.
// Write operations are asynchronous: a nil error means the operation was
// accepted into the pending queue, not that it is already visible to
// readers. Visibility follows with the next reconciliation tick.
type IStore interface {
	// Set inserts or updates a key-value pair. The write becomes visible
	// to readers after the next reconciliation tick.
	Set(key string, value []byte) (err error)
	// SetTTL inserts or updates a key-value pair that expires ttl after
	// the write is applied. A ttl of zero or less is rejected.
	SetTTL(key string, value []byte, ttl time.Duration) (err error)
	// Delete removes a key-value pair. Deleting a non-existent key is
	// accepted and has no effect.
	Delete(key string) (err error)
	// Get returns the currently visible value for a key. The boolean
	// return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// GetInfo returns metadata about the store. It is not guaranteed that
	// all fields are filled in or that the information is up-to-date!
	GetInfo() (info kv.StoreInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCQueueFull:
		errorCode = "QueueFull"
	case RetCShutdown:
		errorCode = "Shutdown"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCQueueFull                       // 2: Pending operation queue is at capacity.
	RetCShutdown                        // 3: Store is shut down and accepts no more writes.
	RetCInvalidOperation                // 4: Invalid operation.
)
