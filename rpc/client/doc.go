// Package client implements the RPC client for the key-value store system.
// It provides an implementation of the store.IStore interface that
// communicates with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a remote store
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to remote servers via the configured
//     transport layer.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:5000"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create store client
//	store, _ := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the store
//	store.Set("mykey", []byte("myvalue"))
//	value, exists, _ := store.Get("mykey")
//
// Note that write calls return once the server has queued the operation, not
// once it is visible: a Get immediately after a successful Set may still see
// the old state until the server's next reconciliation tick.
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The client implementation is thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
