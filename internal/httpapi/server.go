package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"galemind/internal/buffer"
	"galemind/internal/protocol"
	"galemind/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Route(ctx context.Context, req *types.InferenceRequest) error
	ListModels() []types.Model
	IsReady(name string) bool
	Ready() bool
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		proto, err := protocol.ParseProtocol(r.Header.Get(protocol.ProtocolHeader))
		if err != nil {
			writeUnsupportedProtocol(w, r)
			return
		}
		models := svc.ListModels()
		if proto == types.ProtocolOpenAI {
			now := time.Now().Unix()
			out := types.OpenAIModelsResponse{Object: "list", Data: make([]types.OpenAIModelInfo, 0, len(models))}
			for _, m := range models {
				out.Data = append(out.Data, types.OpenAIModelInfo{
					ID:      m.Name,
					Object:  "model",
					Created: now,
					OwnedBy: "galemind",
				})
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
	})

	r.Get("/v1/models/{model}/ready", func(w http.ResponseWriter, r *http.Request) {
		proto, err := protocol.ParseProtocol(r.Header.Get(protocol.ProtocolHeader))
		if err != nil {
			writeUnsupportedProtocol(w, r)
			return
		}
		name := chi.URLParam(r, "model")
		ready := svc.IsReady(name)
		if proto == types.ProtocolOpenAI {
			status := "ready"
			if !ready {
				status = "unavailable"
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"status":   status,
				"model":    name,
				"protocol": "openai",
			})
			return
		}
		writeJSON(w, http.StatusOK, types.ReadyResponse{Ready: ready, Model: name, Protocol: "galemind"})
	})

	r.Post("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		proto, err := protocol.ParseProtocol(r.Header.Get(protocol.ProtocolHeader))
		if err != nil {
			writeUnsupportedProtocol(w, r)
			return
		}
		if proto == types.ProtocolOpenAI {
			handleOpenAIChat(w, r, svc)
			return
		}
		handleNativeInfer(w, r, svc)
	})

	r.Post("/v1/infer", func(w http.ResponseWriter, r *http.Request) {
		handleNativeInfer(w, r, svc)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func handleOpenAIChat(w http.ResponseWriter, r *http.Request, svc Service) {
	var req types.ChatCompletionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	internal, err := protocol.NormalizeOpenAI(req)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error(), "", "invalid_json")
		return
	}
	res, err := dispatch(r, svc, internal)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeOpenAIError(w, statusForError(err), err.Error(), "", "inference_error")
		return
	}
	writeJSON(w, http.StatusOK, types.ChatCompletionResponse{
		ID:      "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      types.ChatMessage{Role: "assistant", Content: contentAsText(res.Content)},
			FinishReason: res.FinishReason,
		}},
		Usage:             res.Usage,
		SystemFingerprint: "fp_galemind_v1",
	})
}

func handleNativeInfer(w http.ResponseWriter, r *http.Request, svc Service) {
	var req types.NativeInferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	internal, err := protocol.NormalizeNative(req)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	res, err := dispatch(r, svc, internal)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.NativeInferResponse{
		ID:           internal.ID,
		Model:        internal.Model,
		ModelVersion: internal.ModelVersion,
		Content:      contentToWire(res.Content),
		FinishReason: res.FinishReason,
		Usage:        res.Usage,
	})
}

// dispatch admits the request and blocks until its result is delivered or
// the joined request/server context expires.
func dispatch(r *http.Request, svc Service, req *types.InferenceRequest) (*types.InferenceResult, error) {
	start := time.Now()
	lvl := requestLogLevel(r)
	if lvl >= LevelInfo && zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Str("model", req.Model)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("infer start")
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	var res *types.InferenceResult
	err := svc.Route(ctx, req)
	if err == nil {
		res, err = req.Completion.Wait(ctx)
	}
	switch {
	case buffer.IsFull(err):
		IncrementBackpressure("buffer_full")
	case buffer.IsPushTimeout(err):
		IncrementBackpressure("push_timeout")
	}
	if lvl >= LevelInfo && zlog != nil {
		z := zlog.Info().Str("model", req.Model).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z.Err(err).Msg("infer end")
		} else {
			z.Msg("infer end")
		}
	}
	return res, err
}

// decodeJSONBody enforces the content type and body size limit before
// decoding. Returns false after writing the error response.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}

func writeUnsupportedProtocol(w http.ResponseWriter, r *http.Request) {
	tag := r.Header.Get(protocol.ProtocolHeader)
	writeOpenAIError(w, http.StatusBadRequest,
		"Unsupported protocol: "+tag+". Supported protocols: 'openai', 'galemind'",
		protocol.ProtocolHeader, "unsupported_protocol")
}

func contentAsText(c types.Content) string {
	switch c.Kind {
	case types.ContentBinary:
		return base64.StdEncoding.EncodeToString(c.Binary)
	case types.ContentBase64:
		return c.Base64
	default:
		return c.Text
	}
}

func contentToWire(c types.Content) types.NativeContent {
	switch c.Kind {
	case types.ContentBinary:
		return types.NativeContent{Type: "binary", Binary: c.Binary}
	case types.ContentBase64:
		return types.NativeContent{Type: "base64", Base64: c.Base64}
	default:
		return types.NativeContent{Type: "text", Text: c.Text}
	}
}
