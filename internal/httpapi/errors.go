package httpapi

import (
	"encoding/json"
	"net/http"

	"galemind/internal/buffer"
	"galemind/internal/manager"
	"galemind/internal/protocol"
	"galemind/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// openAIErrorBody mirrors the OpenAI error envelope so OpenAI clients can
// parse failures without dialect-specific handling.
type openAIErrorBody struct {
	Error openAIErrorDetail `json:"error"`
}

type openAIErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code"`
}

// writeOpenAIError writes an OpenAI-style error envelope. param may be empty.
func writeOpenAIError(w http.ResponseWriter, status int, msg, param, code string) {
	var p *string
	if param != "" {
		p = &param
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(openAIErrorBody{Error: openAIErrorDetail{
		Message: msg,
		Type:    "invalid_request_error",
		Param:   p,
		Code:    code,
	}})
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case protocol.IsUnsupportedProtocol(err),
		protocol.IsMissingModel(err),
		protocol.IsMalformedContent(err),
		protocol.IsStreamError(err):
		return http.StatusBadRequest
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsModelNotReady(err), manager.IsUnloadAborted(err):
		return http.StatusServiceUnavailable
	case buffer.IsFull(err), buffer.IsPushTimeout(err):
		return http.StatusTooManyRequests
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
