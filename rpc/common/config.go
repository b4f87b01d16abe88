package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShard describes one store hosted by the server.
type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// ReconcileIntervalMS is the reconciliation period of the shard's
	// store in milliseconds (0 = store default)
	ReconcileIntervalMS uint64
	// QueueCapacity bounds the shard's pending write queue (0 = unbounded)
	QueueCapacity int
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Shards to host, each backed by its own store
	Shards []ServerShard

	// Request handling parameters
	TimeoutSecond int64

	// Listen endpoint, format depends on the transport
	// (host:port for tcp/http, a socket path for unix)
	Endpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		interval := "default"
		if shard.ReconcileIntervalMS > 0 {
			interval = fmt.Sprintf("%d ms", shard.ReconcileIntervalMS)
		}
		capacity := "unbounded"
		if shard.QueueCapacity > 0 {
			capacity = strconv.Itoa(shard.QueueCapacity)
		}
		addField(
			strconv.FormatUint(shard.ShardID, 10),
			fmt.Sprintf("reconcile interval %s, queue %s", interval, capacity),
		)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
