package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/json instead of protobuf wire format. It is registered under
// the name "proto", the name grpc-go selects by default when a call does
// not set a CallContentSubtype, so every ClusterFederation client and
// server in this module gets it without extra dial/serve options.
//
// This is not a proto.Message codec: Marshal/Unmarshal operate on any Go
// value, which is exactly what the plain structs in messages.go and
// types.go need.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "proto"
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
