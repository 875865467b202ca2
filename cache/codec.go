package cache

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes cached values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec is the default codec. Fields tagged `msgpack:"-"` are skipped,
// which is how entities drop back references to their parents. Untagged
// reference cycles are encoded with the back reference as nil.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(breakCycles(v))
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// JSONCodec stores values as JSON, handy when cache contents are inspected
// by other tools.
// Reference cycles are broken the same way as in MsgpackCodec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(breakCycles(v))
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// CodecByName resolves a configured codec name. Unknown names fall back to
// msgpack.
func CodecByName(name string) Codec {
	switch name {
	case "json":
		return JSONCodec{}
	default:
		return MsgpackCodec{}
	}
}
