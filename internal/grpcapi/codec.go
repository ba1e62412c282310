// Package grpcapi exposes the prediction service over gRPC: readiness
// probes, the legacy ModelInfer call and the unified infer surface with
// client-side chunked streaming.
package grpcapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName identifies the wire codec both sides must select.
const CodecName = "json"

// JSONCodec marshals gRPC messages as JSON. The service descriptor is
// hand-declared over plain structs, so the codec carries the wire format
// instead of protobuf-generated marshaling.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: %w", err)
	}
	return nil
}

func (JSONCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}
