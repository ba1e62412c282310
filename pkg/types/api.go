package types

// Model represents a registered inference model.
type Model struct {
	// Stable identifier for the model.
	Name string `json:"name"`
	// Optional model version. Empty means unversioned.
	Version string `json:"version,omitempty"`
	// Lifecycle state: loading, ready or failed.
	State string `json:"state"`
	// Number of requests currently buffered for this model.
	QueueLen int `json:"queue_len"`
	// Buffer capacity configured at registration.
	QueueCap int `json:"queue_cap"`
}

// ModelsResponse wraps the list of models returned by the galemind-protocol
// GET /v1/models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ReadyResponse is the galemind-protocol model readiness projection.
type ReadyResponse struct {
	Ready    bool   `json:"ready"`
	Model    string `json:"model"`
	Protocol string `json:"protocol"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ChatMessage is one OpenAI-style chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatCompletionRequest is the OpenAI-shaped inbound payload for
// POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	User        string        `json:"user,omitempty"`
}

// ChatChoice is one completion choice in an OpenAI-shaped response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionResponse is the OpenAI-shaped response body.
type ChatCompletionResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	Choices           []ChatChoice `json:"choices"`
	Usage             Usage        `json:"usage"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
}

// OpenAIModelInfo is one entry of the OpenAI-protocol models listing.
type OpenAIModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// OpenAIModelsResponse is the OpenAI-protocol models listing.
type OpenAIModelsResponse struct {
	Object string            `json:"object"`
	Data   []OpenAIModelInfo `json:"data"`
}

// NativeContent is the wire form of Content in the galemind protocol.
// Exactly one of Text, Base64 or Binary should be set, selected by Type.
type NativeContent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Binary []byte `json:"binary,omitempty"`
}

// NativeInferRequest is the galemind-protocol inbound payload.
type NativeInferRequest struct {
	ID           string            `json:"id,omitempty"`
	Model        string            `json:"model_name"`
	ModelVersion string            `json:"model_version,omitempty"`
	Content      NativeContent     `json:"content"`
	Parameters   map[string]any    `json:"parameters,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NativeInferResponse is the galemind-protocol response body.
type NativeInferResponse struct {
	ID           string        `json:"id"`
	Model        string        `json:"model_name"`
	ModelVersion string        `json:"model_version,omitempty"`
	Content      NativeContent `json:"content"`
	FinishReason string        `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
}
