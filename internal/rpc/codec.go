package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype carried on the wire
// (application/grpc+json).
const codecName = "json"

// jsonCodec carries the History messages as JSON. The request and response
// types are plain Go structs shared with the store, so there are no
// generated protobuf messages to marshal.
type jsonCodec struct{}

var _ encoding.Codec = jsonCodec{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
