// Package server implements the RPC server for the key-value store system.
// It provides the adapter for handling RPC requests against a store, along
// with the core server implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for store operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration, each shard backed by its own store
//   - Graceful shutdown that flushes every shard's pending writes
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for key-value
//     store operations, translating RPC requests to store.IStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100},
//	    {ShardID: 200, ReconcileIntervalMS: 50, QueueCapacity: 10000},
//	  },
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Each shard is an independent store with its own pending queue and
// reconciliation loop. A write to one shard never delays reads or writes on
// another. The per-shard reconciliation interval and queue capacity can be
// tuned via the shard configuration.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Listen method is not thread-safe and should be called only once.
package server
