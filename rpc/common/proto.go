package common

import (
	"encoding/json"
	"fmt"

	"github.com/evkv/evkv/lib/kv"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key       string `json:"key,omitempty"`        // Used for: Set, SetTTL, Get, Delete
	TTLMillis uint64 `json:"ttl_millis,omitempty"` // Used for: SetTTL requests
	Value     []byte `json:"value,omitempty"`      // Used for: Set, SetTTL (request), Get (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Get responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses, free for additional Adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSet,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSetTTLRequest creates a new SetTTL request. The time to live is
// transmitted in milliseconds.
func NewSetTTLRequest(key string, value []byte, ttlMillis uint64) *Message {
	return &Message{
		MsgType:   MsgTKVSetTTL,
		Key:       key,
		Value:     value,
		TTLMillis: ttlMillis,
	}
}

// NewSetTTLResponse creates a new SetTTL response
func NewSetTTLResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSetTTL,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDelete,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVGet,
		Ok:      ok,
		Value:   value,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTKVInfo,
	}
}

// NewInfoResponse creates a new Info response. The store info travels as
// JSON in the Meta field so the wire format stays serializer-independent.
func NewInfoResponse(info kv.StoreInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInfo,
	}
	if err != nil {
		msg.Err = err.Error()
		return msg
	}
	meta, marshalErr := json.Marshal(info)
	if marshalErr != nil {
		msg.Err = marshalErr.Error()
		return msg
	}
	msg.Meta = meta
	return msg
}

// InfoFromResponse decodes the store info carried by an Info response.
func InfoFromResponse(msg *Message) (kv.StoreInfo, error) {
	var info kv.StoreInfo
	if err := json.Unmarshal(msg.Meta, &info); err != nil {
		return kv.StoreInfo{}, fmt.Errorf("malformed info response: %w", err)
	}
	return info, nil
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVSet:
		return "set"
	case MsgTKVSetTTL:
		return "setTTL"
	case MsgTKVDelete:
		return "delete"
	case MsgTKVGet:
		return "get"
	case MsgTKVInfo:
		return "info"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "set":
		*t = MsgTKVSet
	case "setTTL":
		*t = MsgTKVSetTTL
	case "delete":
		*t = MsgTKVDelete
	case "get":
		*t = MsgTKVGet
	case "info":
		*t = MsgTKVInfo
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet    // Set a key-value pair
	MsgTKVSetTTL // Set a key-value pair with a time to live
	MsgTKVDelete // Delete a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVInfo   // Get store metadata

	// Custom operations

	MsgTCustom // Custom operation type
)
