package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"galemind/internal/protocol"
	"galemind/pkg/types"
)

// Service defines the methods required by the gRPC API layer.
type Service interface {
	Route(ctx context.Context, req *types.InferenceRequest) error
	ListModels() []types.Model
	IsReady(name string) bool
	Ready() bool
}

// Server implements PredictionServer over the routing service and the
// stream reassembler.
type Server struct {
	svc Service
	ra  *protocol.Reassembler
	log zerolog.Logger
}

// NewServer builds the prediction service implementation.
func NewServer(svc Service, ra *protocol.Reassembler, log zerolog.Logger) *Server {
	return &Server{svc: svc, ra: ra, log: log}
}

func (s *Server) ServerLive(ctx context.Context, _ *ServerLiveRequest) (*ServerLiveResponse, error) {
	return &ServerLiveResponse{Live: true}, nil
}

func (s *Server) ServerReady(ctx context.Context, _ *ServerReadyRequest) (*ServerReadyResponse, error) {
	return &ServerReadyResponse{Ready: s.svc.Ready()}, nil
}

func (s *Server) ModelReady(ctx context.Context, in *ModelReadyRequest) (*ModelReadyResponse, error) {
	return &ModelReadyResponse{Ready: s.svc.IsReady(in.Name)}, nil
}

// ModelInfer is the legacy enqueue-and-ack call: the request is admitted
// into the model's buffer and acknowledged without waiting for execution.
func (s *Server) ModelInfer(ctx context.Context, in *ModelInferRequest) (*ModelInferResponse, error) {
	req, _, err := protocol.Normalize(protocol.UnifiedRequest{
		Protocol:     types.ProtocolGalemind,
		RequestID:    in.ID,
		Model:        in.ModelName,
		ModelVersion: in.ModelVersion,
		Content:      types.TextContent(""),
		Parameters:   in.Parameters,
	})
	if err != nil {
		return nil, statusFromError(err)
	}
	if err := s.svc.Route(ctx, req); err != nil {
		return nil, statusFromError(err)
	}
	// Nobody waits on the legacy path.
	req.Completion.Abandon()
	s.log.Debug().Str("model", in.ModelName).Str("request_id", req.ID).Msg("legacy infer enqueued")
	return &ModelInferResponse{ModelName: in.ModelName, ModelVersion: in.ModelVersion, ID: req.ID}, nil
}

// UnifiedInfer handles a single-shot protocol-tagged request. Chunked
// inputs must use UnifiedInferStream.
func (s *Server) UnifiedInfer(ctx context.Context, in *UnifiedInferRequest) (*UnifiedInferResponse, error) {
	start := time.Now()

	if in.LegacyRequest != nil {
		ack, err := s.ModelInfer(ctx, in.LegacyRequest)
		if err != nil {
			return nil, err
		}
		return &UnifiedInferResponse{
			Protocol:       in.Protocol,
			LegacyResponse: ack,
			ModelName:      ack.ModelName,
			ModelVersion:   ack.ModelVersion,
			RequestID:      ack.ID,
			Status:         &ResponseStatus{Code: StatusSuccess, Message: "Success"},
			Metrics:        &PerformanceMetrics{ProcessingTimeMS: uint64(time.Since(start).Milliseconds())},
		}, nil
	}

	u, err := s.unifiedToInternal(in)
	if err != nil {
		return nil, statusFromError(err)
	}
	req, chunk, err := protocol.Normalize(u)
	if err != nil {
		return nil, statusFromError(err)
	}
	if chunk != nil {
		return nil, statusFromError(protocol.ErrMalformedContent("streaming requests must use UnifiedInferStream"))
	}

	res, err := s.dispatch(ctx, req)
	if err != nil {
		return nil, statusFromError(err)
	}
	return s.buildResponse(in, req, res, start), nil
}

// UnifiedInferStream handles the bidi stream: chunked inputs are
// reassembled per stream id, non-final chunks are acknowledged, and the
// reconstructed request is routed once complete. Chunk-level violations are
// reported in-band so the gRPC stream survives them.
func (s *Server) UnifiedInferStream(stream PredictionUnifiedInferStreamServer) error {
	for {
		in, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if in.StreamMetadata == nil || !in.StreamMetadata.IsStreaming {
			start := time.Now()
			resp, err := s.UnifiedInfer(stream.Context(), in)
			if err != nil {
				resp = s.errorResponse(in, err, start)
			}
			if err := stream.Send(resp); err != nil {
				return err
			}
			continue
		}

		if err := s.handleChunk(stream, in); err != nil {
			return err
		}
	}
}

// handleChunk ingests one stream fragment. Only transport-level Send
// failures propagate; reassembly errors go back in-band.
func (s *Server) handleChunk(stream PredictionUnifiedInferStreamServer, in *UnifiedInferRequest) error {
	start := time.Now()
	u, err := s.unifiedToInternal(in)
	if err != nil {
		return stream.Send(s.errorResponse(in, err, start))
	}
	_, chunk, err := protocol.Normalize(u)
	if err != nil {
		return stream.Send(s.errorResponse(in, err, start))
	}
	chunk.Completion = types.NewCompletion()

	completed, err := s.ra.Accept(chunk)
	if err != nil {
		s.log.Debug().Str("stream_id", in.StreamMetadata.StreamID).Err(err).Msg("chunk rejected")
		return stream.Send(s.errorResponse(in, err, start))
	}
	if completed == nil {
		return stream.Send(&UnifiedInferResponse{
			Protocol: in.Protocol,
			Content: &MessageContent{
				Type: "text",
				Text: fmt.Sprintf("Chunk %d received", in.StreamMetadata.ChunkSequence),
			},
			StreamMetadata: &StreamMetadata{
				StreamID:      in.StreamMetadata.StreamID,
				ChunkSequence: in.StreamMetadata.ChunkSequence,
				IsStreaming:   true,
				EndOfStream:   false,
				TotalChunks:   in.StreamMetadata.TotalChunks,
			},
			ModelName:    in.ModelName,
			ModelVersion: in.ModelVersion,
			RequestID:    in.RequestID,
			Status:       &ResponseStatus{Code: StatusSuccess, Message: "Chunk received"},
			Metrics:      &PerformanceMetrics{ProcessingTimeMS: uint64(time.Since(start).Milliseconds())},
		})
	}

	res, err := s.dispatch(stream.Context(), completed)
	if err != nil {
		return stream.Send(s.errorResponse(in, err, start))
	}
	resp := s.buildResponse(in, completed, res, start)
	resp.StreamMetadata = &StreamMetadata{
		StreamID:      in.StreamMetadata.StreamID,
		ChunkSequence: in.StreamMetadata.ChunkSequence,
		IsStreaming:   true,
		EndOfStream:   true,
		TotalChunks:   in.StreamMetadata.TotalChunks,
	}
	resp.Status.Message = "Stream completed"
	return stream.Send(resp)
}

// dispatch admits the request and waits for its result.
func (s *Server) dispatch(ctx context.Context, req *types.InferenceRequest) (*types.InferenceResult, error) {
	if err := s.svc.Route(ctx, req); err != nil {
		return nil, err
	}
	return req.Completion.Wait(ctx)
}

func (s *Server) unifiedToInternal(in *UnifiedInferRequest) (protocol.UnifiedRequest, error) {
	proto, err := protocol.ParseProtocol(in.Protocol)
	if err != nil {
		return protocol.UnifiedRequest{}, err
	}
	content, err := contentFromWire(in.Content)
	if err != nil {
		return protocol.UnifiedRequest{}, err
	}
	u := protocol.UnifiedRequest{
		Protocol:     proto,
		RequestID:    in.RequestID,
		Model:        in.ModelName,
		ModelVersion: in.ModelVersion,
		Content:      content,
		Parameters:   in.Parameters,
		Metadata:     in.Metadata,
	}
	if in.StreamMetadata != nil {
		u.Stream = &types.StreamMetadata{
			StreamID:      in.StreamMetadata.StreamID,
			ChunkSequence: in.StreamMetadata.ChunkSequence,
			IsStreaming:   in.StreamMetadata.IsStreaming,
			EndOfStream:   in.StreamMetadata.EndOfStream,
			TotalChunks:   in.StreamMetadata.TotalChunks,
		}
	}
	return u, nil
}

func (s *Server) buildResponse(in *UnifiedInferRequest, req *types.InferenceRequest, res *types.InferenceResult, start time.Time) *UnifiedInferResponse {
	return &UnifiedInferResponse{
		Protocol:     in.Protocol,
		Content:      contentToWire(res.Content),
		ModelName:    req.Model,
		ModelVersion: req.ModelVersion,
		RequestID:    req.ID,
		Status:       &ResponseStatus{Code: StatusSuccess, Message: "Success"},
		Metrics: &PerformanceMetrics{
			ProcessingTimeMS: uint64(time.Since(start).Milliseconds()),
			TokenUsage: &TokenUsage{
				PromptTokens:     res.Usage.PromptTokens,
				CompletionTokens: res.Usage.CompletionTokens,
				TotalTokens:      res.Usage.TotalTokens,
			},
		},
	}
}

func (s *Server) errorResponse(in *UnifiedInferRequest, err error, start time.Time) *UnifiedInferResponse {
	resp := &UnifiedInferResponse{
		Protocol:     in.Protocol,
		ModelName:    in.ModelName,
		ModelVersion: in.ModelVersion,
		RequestID:    in.RequestID,
		Status:       &ResponseStatus{Code: StatusError, Message: err.Error()},
		Metrics:      &PerformanceMetrics{ProcessingTimeMS: uint64(time.Since(start).Milliseconds())},
	}
	if in.StreamMetadata != nil {
		resp.StreamMetadata = &StreamMetadata{
			StreamID:      in.StreamMetadata.StreamID,
			ChunkSequence: in.StreamMetadata.ChunkSequence,
			IsStreaming:   in.StreamMetadata.IsStreaming,
			EndOfStream:   in.StreamMetadata.EndOfStream,
			TotalChunks:   in.StreamMetadata.TotalChunks,
		}
	}
	return resp
}

// contentFromWire decodes the wire content union. A nil content defaults to
// empty text so legacy-shaped requests keep working.
func contentFromWire(c *MessageContent) (types.Content, error) {
	if c == nil {
		return types.TextContent(""), nil
	}
	switch c.Type {
	case "", "text":
		return types.TextContent(c.Text), nil
	case "binary":
		return types.BinaryContent(c.Binary), nil
	case "base64":
		return types.Base64Content(c.Base64), nil
	default:
		return types.Content{}, protocol.ErrMalformedContent("unknown content type: " + c.Type)
	}
}

func contentToWire(c types.Content) *MessageContent {
	switch c.Kind {
	case types.ContentBinary:
		return &MessageContent{Type: "binary", Binary: c.Binary}
	case types.ContentBase64:
		return &MessageContent{Type: "base64", Base64: c.Base64}
	default:
		return &MessageContent{Type: "text", Text: c.Text}
	}
}
