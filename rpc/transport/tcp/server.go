package tcp

import (
	"fmt"
	"net"

	"github.com/evkv/evkv/rpc/common"
	"github.com/evkv/evkv/rpc/transport"
	"github.com/evkv/evkv/rpc/transport/base"
)

const (
	defaultBufferSize        = 512 * 1024 // 512 KB
	defaultMaxWorkersPerConn = 64
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	// Create TCP socket listener
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	return listener, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPDefaultServerTransport creates a new TCP server transport with default settings
func NewTCPDefaultServerTransport() transport.IRPCServerTransport {
	return NewTCPServerTransport(defaultBufferSize, defaultMaxWorkersPerConn)
}

// NewTCPServerTransport creates a new TCP server transport with the specified
// read buffer size and worker limit per connection
func NewTCPServerTransport(bufferSize, maxWorkersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, maxWorkersPerConn)
}
