package client

import (
	"time"

	"github.com/evkv/evkv/lib/kv"
	"github.com/evkv/evkv/lib/store"
	"github.com/evkv/evkv/rpc/common"
	"github.com/evkv/evkv/rpc/serializer"
	"github.com/evkv/evkv/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value []byte) (err error) {
	req := common.NewSetRequest(key, value)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) SetTTL(key string, value []byte, ttl time.Duration) (err error) {
	req := common.NewSetTTLRequest(key, value, uint64(ttl.Milliseconds()))
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Delete(key string) (err error) {
	req := common.NewDeleteRequest(key)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Get(key string) (value []byte, loaded bool, err error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) GetInfo() (info kv.StoreInfo, err error) {
	req := common.NewInfoRequest()
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return kv.StoreInfo{}, err
	}
	return common.InfoFromResponse(resp)
}
