package server

import (
	"fmt"
	"time"

	"github.com/evkv/evkv/lib/store"
	"github.com/evkv/evkv/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		err := store.Set(req.Key, req.Value)
		return common.NewSetResponse(err)
	case common.MsgTKVSetTTL:
		err := store.SetTTL(req.Key, req.Value, time.Duration(req.TTLMillis)*time.Millisecond)
		return common.NewSetTTLResponse(err)
	case common.MsgTKVDelete:
		err := store.Delete(req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTKVGet:
		val, ok, err := store.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVInfo:
		info, err := store.GetInfo()
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
