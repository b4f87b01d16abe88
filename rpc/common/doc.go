// Package common provides core data structures and utilities shared across
// the key-value store system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for inter-component communication
//   - Configuration structures for client and server components
//   - Custom logging implementation with per-subsystem levels
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types in the
//     system, categorized into key-value operations and control messages.
//
//   - ServerConfig: Configuration for server nodes, including the shards to
//     serve with their reconciliation intervals and queue capacities, network
//     configuration, and log level.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation providing consistent formatting
//     across the application.
package common
