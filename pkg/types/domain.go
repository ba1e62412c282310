package types

import (
	"encoding/base64"
	"time"
)

// Protocol identifies the inference dialect a request was submitted with.
type Protocol string

const (
	ProtocolGalemind Protocol = "galemind"
	ProtocolOpenAI   Protocol = "openai"
)

// ContentKind discriminates the variants of Content.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentBinary ContentKind = "binary"
	ContentBase64 ContentKind = "base64"
)

// Content is a tagged union: exactly one payload field is populated,
// selected by Kind.
type Content struct {
	Kind   ContentKind
	Text   string
	Binary []byte
	Base64 string
}

// TextContent builds a text content value.
func TextContent(s string) Content { return Content{Kind: ContentText, Text: s} }

// BinaryContent builds a binary content value.
func BinaryContent(b []byte) Content { return Content{Kind: ContentBinary, Binary: b} }

// Base64Content builds a base64 content value. ValidateBase64 must pass
// before the value is admitted to a buffer.
func Base64Content(s string) Content { return Content{Kind: ContentBase64, Base64: s} }

// ValidateBase64 checks that a base64 payload decodes. Content of other
// kinds passes unchanged.
func (c Content) ValidateBase64() error {
	if c.Kind != ContentBase64 {
		return nil
	}
	_, err := base64.StdEncoding.DecodeString(c.Base64)
	return err
}

// Len reports the payload size of the populated variant.
func (c Content) Len() int {
	switch c.Kind {
	case ContentBinary:
		return len(c.Binary)
	case ContentBase64:
		return len(c.Base64)
	default:
		return len(c.Text)
	}
}

// InferenceRequest is the single internal representation every transport
// normalizes into before admission. The pipeline owns the value from
// normalization until the batcher delivers its result; the Completion
// handle is shared with the originating transport handler.
type InferenceRequest struct {
	ID           string
	Model        string
	ModelVersion string
	Protocol     Protocol
	Content      Content
	Parameters   map[string]any
	Metadata     map[string]string
	EnqueuedAt   time.Time
	Completion   *Completion
}

// StreamMetadata tags one fragment of a client-streamed input.
// ChunkSequence is 1-based and strictly increasing per StreamID.
// TotalChunks of zero means undeclared.
type StreamMetadata struct {
	StreamID      string
	ChunkSequence uint64
	IsStreaming   bool
	EndOfStream   bool
	TotalChunks   uint64
}

// Usage reports token accounting for one result.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is what the execution runtime produces per request.
type InferenceResult struct {
	RequestID    string
	Model        string
	Content      Content
	FinishReason string
	Usage        Usage
}
