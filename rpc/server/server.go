package server

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/evkv/evkv/lib/store"
	"github.com/evkv/evkv/lib/store/estore"
	"github.com/evkv/evkv/rpc/common"
	"github.com/evkv/evkv/rpc/serializer"
	"github.com/evkv/evkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create shards map
	shardMap := xsync.NewMapOf[uint64, serverShard]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     shardMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate shard
		shard, ok := s.shards.Load(shardId)

		// Case shard does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "shard not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *shard.Adapter.Handle(&msg, shard.Store)
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			}
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// CREATE SHARDS

	/*
		Note: A single RPC Server can host any number of shards. Each shard
		is backed by its own store with its own reconciliation loop and
		pending queue. The following loop creates all the shards and stores
		them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		opts := estore.DefaultOptions()
		opts.Name = fmt.Sprintf("shard-%d", shardConfig.ShardID)
		opts.QueueCapacity = shardConfig.QueueCapacity
		if shardConfig.ReconcileIntervalMS > 0 {
			opts.ReconcileInterval = time.Duration(shardConfig.ReconcileIntervalMS) * time.Millisecond
		}

		st, err := estore.New(opts)
		if err != nil {
			return fmt.Errorf("failed to create store for shard %d: %w", shardConfig.ShardID, err)
		}
		st.Start()

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created store for shard %d", shardConfig.ShardID)
	}

	Logger.Infof("evkv setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	// Flush and close all stores on termination
	go s.handleSignals()

	return nil
}

// handleSignals flushes every shard's pending writes before the process exits
func (s *rpcServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	Logger.Infof("received signal %v, shutting down", sig)
	s.shards.Range(func(shardId uint64, shard serverShard) bool {
		if st, ok := shard.Store.(*estore.Store); ok {
			st.Close()
		}
		return true
	})
	os.Exit(0)
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
