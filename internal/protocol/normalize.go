// Package protocol normalizes REST-native, REST-OpenAI and gRPC wire
// requests into the single internal representation the buffering engine
// admits, and reassembles multi-chunk streamed inputs.
package protocol

import (
	"strings"

	"github.com/google/uuid"

	"galemind/pkg/types"
)

// ProtocolHeader is the REST header selecting the inference dialect.
const ProtocolHeader = "X-Protocol-Inference"

// ParseProtocol resolves a protocol tag from a transport hint. An empty tag
// defaults to the galemind protocol; an unrecognized tag is rejected.
func ParseProtocol(tag string) (types.Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "galemind":
		return types.ProtocolGalemind, nil
	case "openai":
		return types.ProtocolOpenAI, nil
	default:
		return "", ErrUnsupportedProtocol(tag)
	}
}

// UnifiedRequest is the transport-agnostic view handed to Normalize by the
// REST and gRPC front-ends. Stream is non-nil for chunked gRPC inputs.
type UnifiedRequest struct {
	Protocol     types.Protocol
	RequestID    string
	Model        string
	ModelVersion string
	Content      types.Content
	Parameters   map[string]any
	Metadata     map[string]string
	Stream       *types.StreamMetadata
}

// PartialChunk is one fragment of a chunked stream, routed to the
// Reassembler instead of the model manager. Completion is shared with the
// originating handler so stream-level failures and timeouts reach the
// caller.
type PartialChunk struct {
	Meta       types.StreamMetadata
	Request    UnifiedRequest
	Completion *types.Completion
}

// Normalize converts one unified wire request into either a complete
// InferenceRequest or a PartialChunk bound for the Reassembler. Exactly one
// of the two returns is non-nil on success.
func Normalize(u UnifiedRequest) (*types.InferenceRequest, *PartialChunk, error) {
	if strings.TrimSpace(u.Model) == "" {
		return nil, nil, ErrMissingModel()
	}
	if err := u.Content.ValidateBase64(); err != nil {
		return nil, nil, ErrMalformedContent("invalid base64 payload: " + err.Error())
	}
	if u.Protocol == "" {
		u.Protocol = types.ProtocolGalemind
	}

	if u.Stream != nil && u.Stream.IsStreaming {
		return nil, &PartialChunk{Meta: *u.Stream, Request: u}, nil
	}

	return &types.InferenceRequest{
		ID:           orGeneratedID(u.RequestID),
		Model:        u.Model,
		ModelVersion: u.ModelVersion,
		Protocol:     u.Protocol,
		Content:      u.Content,
		Parameters:   u.Parameters,
		Metadata:     u.Metadata,
	}, nil, nil
}

// NormalizeOpenAI maps an OpenAI-shaped chat request field-for-field into
// the internal representation: the last message becomes the text content
// and sampling knobs become parameters.
func NormalizeOpenAI(req types.ChatCompletionRequest) (*types.InferenceRequest, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, ErrMissingModel()
	}
	if len(req.Messages) == 0 {
		return nil, ErrMalformedContent("messages must not be empty")
	}

	params := map[string]any{}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	if req.MaxTokens > 0 {
		params["max_tokens"] = req.MaxTokens
	}
	if req.Stream {
		params["stream"] = true
	}

	meta := map[string]string{}
	if req.User != "" {
		meta["user"] = req.User
	}
	last := req.Messages[len(req.Messages)-1]

	return &types.InferenceRequest{
		ID:         orGeneratedID(""),
		Model:      req.Model,
		Protocol:   types.ProtocolOpenAI,
		Content:    types.TextContent(last.Content),
		Parameters: params,
		Metadata:   meta,
	}, nil
}

// NormalizeNative maps a galemind-protocol REST request into the internal
// representation.
func NormalizeNative(req types.NativeInferRequest) (*types.InferenceRequest, error) {
	content, err := contentFromWire(req.Content)
	if err != nil {
		return nil, err
	}
	internal, _, err := Normalize(UnifiedRequest{
		Protocol:     types.ProtocolGalemind,
		RequestID:    req.ID,
		Model:        req.Model,
		ModelVersion: req.ModelVersion,
		Content:      content,
		Parameters:   req.Parameters,
		Metadata:     req.Metadata,
	})
	return internal, err
}

// contentFromWire decodes the native wire content union. An empty type
// defaults to text, preserving the legacy single-shot request shape.
func contentFromWire(c types.NativeContent) (types.Content, error) {
	switch strings.ToLower(c.Type) {
	case "", "text":
		return types.TextContent(c.Text), nil
	case "binary":
		return types.BinaryContent(c.Binary), nil
	case "base64":
		return types.Base64Content(c.Base64), nil
	default:
		return types.Content{}, ErrMalformedContent("unknown content type: " + c.Type)
	}
}

func orGeneratedID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
