package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeusync/reefrush/pkg/generic"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec converts messages to and from their wire bytes.
type Codec interface {
	Name() string
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// Oversized buffers from a burst of large snapshots are left to the GC.
var buffers = generic.NewHotPool(func() *bytes.Buffer { return new(bytes.Buffer) }, 8,
	generic.WithRetain(func(b *bytes.Buffer) bool { return b.Cap() <= 1<<20 }),
	generic.WithReset((*bytes.Buffer).Reset),
)

// CodecByName returns the codec registered under name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec is human-readable and is what browsers speak.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(msg Message) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, WrapError(fmt.Errorf("%w: %w", ErrSerializationFailed, err), "encode json")
	}
	// Drop the trailing newline written by json.Encoder.
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, WrapError(fmt.Errorf("%w: %w", ErrDeserializationFailed, err), "decode json")
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// MsgpackCodec is the compact binary codec used for snapshots.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Encode(msg Message) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := msgpack.NewEncoder(buf).Encode(msg); err != nil {
		return nil, WrapError(fmt.Errorf("%w: %w", ErrSerializationFailed, err), "encode msgpack")
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (MsgpackCodec) Decode(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, WrapError(fmt.Errorf("%w: %w", ErrDeserializationFailed, err), "decode msgpack")
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
