package protocol

import "fmt"

// Normalization failures are always user-facing (4xx-equivalent).

type unsupportedProtocolError struct{ tag string }

func (e unsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol: %q (supported: openai, galemind)", e.tag)
}

// ErrUnsupportedProtocol constructs the error for an unrecognized protocol tag.
func ErrUnsupportedProtocol(tag string) error { return unsupportedProtocolError{tag: tag} }

// IsUnsupportedProtocol reports whether err indicates an unknown protocol tag.
func IsUnsupportedProtocol(err error) bool {
	_, ok := err.(unsupportedProtocolError)
	return ok
}

type malformedContentError struct{ reason string }

func (e malformedContentError) Error() string { return "malformed content: " + e.reason }

// ErrMalformedContent constructs the error for content that fails decoding.
func ErrMalformedContent(reason string) error { return malformedContentError{reason: reason} }

// IsMalformedContent reports whether err indicates undecodable content.
func IsMalformedContent(err error) bool {
	_, ok := err.(malformedContentError)
	return ok
}

type missingModelError struct{}

func (missingModelError) Error() string { return "model_name is required" }

// ErrMissingModel is returned when a request names no model.
func ErrMissingModel() error { return missingModelError{} }

// IsMissingModel reports whether err indicates an empty model name.
func IsMissingModel(err error) bool {
	_, ok := err.(missingModelError)
	return ok
}

// Stream protocol violations close the stream they occur on.

// StreamErrorKind enumerates chunk-protocol violations.
type StreamErrorKind string

const (
	StreamDuplicateChunk     StreamErrorKind = "duplicate_chunk"
	StreamOutOfOrder         StreamErrorKind = "out_of_order"
	StreamMixedContentType   StreamErrorKind = "mixed_content_type"
	StreamChunkCountExceeded StreamErrorKind = "chunk_count_exceeded"
	StreamTimeout            StreamErrorKind = "timeout"
)

type streamError struct {
	kind     StreamErrorKind
	streamID string
	detail   string
}

func (e streamError) Error() string {
	return fmt.Sprintf("stream %s: %s: %s", e.streamID, e.kind, e.detail)
}

func newStreamError(kind StreamErrorKind, streamID, detail string) error {
	return streamError{kind: kind, streamID: streamID, detail: detail}
}

// StreamErrorOf returns the violation kind of err, if it is a stream error.
func StreamErrorOf(err error) (StreamErrorKind, bool) {
	se, ok := err.(streamError)
	if !ok {
		return "", false
	}
	return se.kind, true
}

// IsStreamError reports whether err is a chunk-protocol violation.
func IsStreamError(err error) bool {
	_, ok := err.(streamError)
	return ok
}
