package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"galemind/internal/buffer"
	"galemind/internal/manager"
	"galemind/pkg/types"
)

type mockService struct {
	models   []types.Model
	ready    bool
	notReady map[string]bool
	routeErr error
	result   *types.InferenceResult
}

func (m *mockService) ListModels() []types.Model { return append([]types.Model(nil), m.models...) }
func (m *mockService) Ready() bool               { return m.ready }
func (m *mockService) IsReady(name string) bool  { return !m.notReady[name] }

func (m *mockService) Route(ctx context.Context, req *types.InferenceRequest) error {
	if m.routeErr != nil {
		return m.routeErr
	}
	if req.Completion == nil {
		req.Completion = types.NewCompletion()
	}
	res := m.result
	if res == nil {
		res = &types.InferenceResult{
			RequestID:    req.ID,
			Model:        req.Model,
			Content:      req.Content,
			FinishReason: "stop",
		}
	}
	req.Completion.Resolve(res)
	return nil
}

// fullRingError produces the real rejection error a saturated fail-fast
// buffer returns, so mapping is tested against the genuine type.
func fullRingError(t *testing.T) error {
	t.Helper()
	ring := buffer.NewRing(1, buffer.PolicyRejectFast, 0)
	defer ring.Close()
	if err := ring.Push(context.Background(), &types.InferenceRequest{ID: "a"}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	err := ring.Push(context.Background(), &types.InferenceRequest{ID: "b"})
	if !buffer.IsFull(err) {
		t.Fatalf("expected full error, got %v", err)
	}
	return err
}

func postJSON(r http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestModelsDefaultListing(t *testing.T) {
	svc := &mockService{models: []types.Model{{Name: "m1", State: "ready"}, {Name: "m2", State: "loading"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 || body.Models[0].Name != "m1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestModelsOpenAIListing(t *testing.T) {
	svc := &mockService{models: []types.Model{{Name: "m1"}}}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("X-Protocol-Inference", "openai")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.OpenAIModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "list" || len(body.Data) != 1 || body.Data[0].ID != "m1" || body.Data[0].OwnedBy != "galemind" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestUnknownProtocolRejected(t *testing.T) {
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("X-Protocol-Inference", "carrier-pigeon")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unsupported_protocol") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestModelReady(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models/m1/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Ready || body.Model != "m1" || body.Protocol != "galemind" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestModelReadyOpenAIProjection(t *testing.T) {
	r := NewMux(&mockService{notReady: map[string]bool{"m1": true}})
	req := httptest.NewRequest(http.MethodGet, "/v1/models/m1/ready", nil)
	req.Header.Set("X-Protocol-Inference", "openai")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["status"] != "unavailable" || body["protocol"] != "openai" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestChatCompletionsOpenAI(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/chat/completions",
		`{"model":"m1","messages":[{"role":"user","content":"hello there"}]}`,
		map[string]string{"X-Protocol-Inference": "openai"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "chat.completion" || !strings.HasPrefix(body.ID, "chatcmpl-") {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if len(body.Choices) != 1 || body.Choices[0].Message.Content != "hello there" {
		t.Fatalf("unexpected choices: %+v", body.Choices)
	}
	if body.Choices[0].FinishReason != "stop" {
		t.Fatalf("finish_reason=%q", body.Choices[0].FinishReason)
	}
}

func TestChatCompletionsOpenAIMissingMessages(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/chat/completions",
		`{"model":"m1","messages":[]}`,
		map[string]string{"X-Protocol-Inference": "openai"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatCompletionsDefaultsToNative(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/chat/completions",
		`{"model_name":"m1","content":{"type":"text","text":"ping"}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.NativeInferResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Model != "m1" || body.Content.Text != "ping" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.ID == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestNativeInferEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/infer",
		`{"id":"req-7","model_name":"m1","content":{"type":"base64","base64":"aGk="}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.NativeInferResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.ID != "req-7" || body.Content.Base64 != "aGk=" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestNativeInferFallsBackToDefaultModel(t *testing.T) {
	SetDefaultModel("m-default")
	defer SetDefaultModel("")

	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/infer", `{"content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.NativeInferResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Model != "m-default" {
		t.Fatalf("model = %q, want fallback", body.Model)
	}
}

func TestNativeInferBadBase64(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/infer",
		`{"model_name":"m1","content":{"type":"base64","base64":"!!not-base64!!"}}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestNativeInferMissingModel(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/infer", `{"content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferBadJSON(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(r, "/v1/infer", "not-json", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/v1/infer", bytes.NewBufferString(`{"model_name":"m1"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferBodyTooLarge(t *testing.T) {
	r := NewMux(&mockService{})
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/infer", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestErrorMappingNotFound(t *testing.T) {
	r := NewMux(&mockService{routeErr: manager.ErrModelNotFound("m1")})
	w := postJSON(r, "/v1/infer", `{"model_name":"m1","content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestErrorMappingNotReady(t *testing.T) {
	r := NewMux(&mockService{routeErr: manager.ErrModelNotReady("m1", manager.StateLoading)})
	w := postJSON(r, "/v1/infer", `{"model_name":"m1","content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestErrorMappingBufferFull(t *testing.T) {
	r := NewMux(&mockService{routeErr: fullRingError(t)})
	w := postJSON(r, "/v1/infer", `{"model_name":"m1","content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestErrorMappingOpenAIEnvelope(t *testing.T) {
	r := NewMux(&mockService{routeErr: manager.ErrModelNotFound("m1")})
	w := postJSON(r, "/v1/chat/completions",
		`{"model":"m1","messages":[{"role":"user","content":"hi"}]}`,
		map[string]string{"X-Protocol-Inference": "openai"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var body openAIErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Error.Type != "invalid_request_error" || body.Error.Message == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestErrorMappingGenericMaps500(t *testing.T) {
	r := NewMux(&mockService{routeErr: context.DeadlineExceeded})
	w := postJSON(r, "/v1/infer", `{"model_name":"m1","content":{"type":"text","text":"hi"}}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}
