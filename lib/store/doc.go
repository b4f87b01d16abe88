// Package store provides a high-level interface for key-value storage
// operations with eventual write visibility, time-to-live expiration, and
// unified error handling. It serves as an abstraction layer over the
// lower-level kv building blocks (pending queue, snapshot map, expiry index
// and reconciler), adding standardized error reporting and a stable surface
// that both in-process callers and the RPC layer program against.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - A consistency contract that separates write acceptance from write visibility
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting
//     with a key-value store. Implementations share this common interface, so
//     applications can switch between an in-process store and a remote client
//     without code changes. Write methods return as soon as the operation is
//     accepted into the pending queue; the write becomes visible to readers
//     with the next reconciliation tick.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes and descriptive messages. This system allows applications to make
//     informed decisions based on specific error conditions (a full queue, a
//     shut-down store) rather than generic errors.
//
// Implementations:
//
//	The package includes two implementations of the IStore interface:
//
//	- Eventual Store (estore): The in-process implementation built on the kv
//	  packages. Readers never block on writers; writes are queued and applied
//	  by a single background reconciler. Available in the
//	  "github.com/evkv/evkv/lib/store/estore" package.
//
//	- RPC Client: A remote implementation that forwards every IStore call to
//	  an evkv server over TCP, unix sockets or HTTP. Available in the
//	  "github.com/evkv/evkv/rpc/client" package.
//
// This interface-driven approach allows applications to:
//   - Switch between in-process and remote storage depending on deployment requirements
//   - Handle errors in a consistent and type-safe manner across implementations
//   - Abstract storage implementation details from application logic
package store
