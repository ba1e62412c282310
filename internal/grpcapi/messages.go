package grpcapi

// Wire messages for the prediction service. Shapes mirror
// proto/prediction.proto; the JSON codec carries them on the wire.

// ServerLiveRequest asks whether the process is up.
type ServerLiveRequest struct{}

// ServerLiveResponse reports process liveness.
type ServerLiveResponse struct {
	Live bool `json:"live"`
}

// ServerReadyRequest asks whether every registered model is ready.
type ServerReadyRequest struct{}

// ServerReadyResponse reports aggregate readiness.
type ServerReadyResponse struct {
	Ready bool `json:"ready"`
}

// ModelReadyRequest asks whether one model accepts traffic.
type ModelReadyRequest struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ModelReadyResponse reports per-model readiness.
type ModelReadyResponse struct {
	Ready bool `json:"ready"`
}

// MessageContent is the wire content union. Type selects which payload
// field is populated: text, binary or base64.
type MessageContent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Binary []byte `json:"binary,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// StreamMetadata tags one fragment of a chunked client stream.
type StreamMetadata struct {
	StreamID      string `json:"stream_id"`
	ChunkSequence uint64 `json:"chunk_sequence"`
	IsStreaming   bool   `json:"is_streaming"`
	EndOfStream   bool   `json:"end_of_stream"`
	TotalChunks   uint64 `json:"total_chunks,omitempty"`
}

// ResponseStatus carries a per-message outcome alongside the payload so
// chunk-level failures do not tear down the whole gRPC stream.
type ResponseStatus struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TokenUsage reports token accounting for one response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PerformanceMetrics carries timing data for one response.
type PerformanceMetrics struct {
	ProcessingTimeMS uint64      `json:"processing_time_ms"`
	QueueTimeMS      uint64      `json:"queue_time_ms"`
	TokenUsage       *TokenUsage `json:"token_usage,omitempty"`
}

// ModelInferRequest is the legacy enqueue-and-ack call shape.
type ModelInferRequest struct {
	ID           string         `json:"id"`
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// ModelInferResponse acknowledges a legacy enqueue.
type ModelInferResponse struct {
	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version,omitempty"`
	ID           string `json:"id"`
}

// UnifiedInferRequest is the protocol-tagged infer call. LegacyRequest, when
// set, routes through the ModelInfer compatibility path. StreamMetadata, when
// set with is_streaming, marks the message as one chunk of a larger input.
type UnifiedInferRequest struct {
	Protocol       string             `json:"protocol,omitempty"`
	LegacyRequest  *ModelInferRequest `json:"legacy_request,omitempty"`
	Content        *MessageContent    `json:"content,omitempty"`
	StreamMetadata *StreamMetadata    `json:"stream_metadata,omitempty"`
	ModelName      string             `json:"model_name"`
	ModelVersion   string             `json:"model_version,omitempty"`
	RequestID      string             `json:"request_id,omitempty"`
	Parameters     map[string]any     `json:"parameters,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
}

// UnifiedInferResponse is the unified result envelope.
type UnifiedInferResponse struct {
	Protocol       string              `json:"protocol,omitempty"`
	LegacyResponse *ModelInferResponse `json:"legacy_response,omitempty"`
	Content        *MessageContent     `json:"content,omitempty"`
	StreamMetadata *StreamMetadata     `json:"stream_metadata,omitempty"`
	ModelName      string              `json:"model_name"`
	ModelVersion   string              `json:"model_version,omitempty"`
	RequestID      string              `json:"request_id,omitempty"`
	Status         *ResponseStatus     `json:"status,omitempty"`
	Metrics        *PerformanceMetrics `json:"metrics,omitempty"`
}
