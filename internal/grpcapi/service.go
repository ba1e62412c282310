package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// PredictionServiceName is the fully qualified gRPC service name.
const PredictionServiceName = "galemind.PredictionService"

// PredictionServer is the server contract for the prediction service.
type PredictionServer interface {
	ServerLive(context.Context, *ServerLiveRequest) (*ServerLiveResponse, error)
	ServerReady(context.Context, *ServerReadyRequest) (*ServerReadyResponse, error)
	ModelReady(context.Context, *ModelReadyRequest) (*ModelReadyResponse, error)
	ModelInfer(context.Context, *ModelInferRequest) (*ModelInferResponse, error)
	UnifiedInfer(context.Context, *UnifiedInferRequest) (*UnifiedInferResponse, error)
	UnifiedInferStream(PredictionUnifiedInferStreamServer) error
}

// PredictionUnifiedInferStreamServer is the server view of the bidi stream.
type PredictionUnifiedInferStreamServer interface {
	Send(*UnifiedInferResponse) error
	Recv() (*UnifiedInferRequest, error)
	grpc.ServerStream
}

type predictionUnifiedInferStreamServer struct {
	grpc.ServerStream
}

func (s *predictionUnifiedInferStreamServer) Send(m *UnifiedInferResponse) error {
	return s.ServerStream.SendMsg(m)
}

func (s *predictionUnifiedInferStreamServer) Recv() (*UnifiedInferRequest, error) {
	m := new(UnifiedInferRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterPredictionServer registers srv against the hand-declared service
// descriptor. The server must be built with the JSON codec forced.
func RegisterPredictionServer(s grpc.ServiceRegistrar, srv PredictionServer) {
	s.RegisterService(&PredictionService_ServiceDesc, srv)
}

func serverLiveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ServerLiveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionServer).ServerLive(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PredictionServiceName + "/ServerLive"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionServer).ServerLive(ctx, req.(*ServerLiveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func serverReadyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ServerReadyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionServer).ServerReady(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PredictionServiceName + "/ServerReady"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionServer).ServerReady(ctx, req.(*ServerReadyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func modelReadyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ModelReadyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionServer).ModelReady(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PredictionServiceName + "/ModelReady"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionServer).ModelReady(ctx, req.(*ModelReadyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func modelInferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ModelInferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionServer).ModelInfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PredictionServiceName + "/ModelInfer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionServer).ModelInfer(ctx, req.(*ModelInferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func unifiedInferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UnifiedInferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionServer).UnifiedInfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + PredictionServiceName + "/UnifiedInfer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionServer).UnifiedInfer(ctx, req.(*UnifiedInferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func unifiedInferStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PredictionServer).UnifiedInferStream(&predictionUnifiedInferStreamServer{ServerStream: stream})
}

// PredictionService_ServiceDesc is the grpc.ServiceDesc for the prediction
// service. Declared by hand over the JSON codec; proto/prediction.proto
// documents the schema.
var PredictionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: PredictionServiceName,
	HandlerType: (*PredictionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ServerLive", Handler: serverLiveHandler},
		{MethodName: "ServerReady", Handler: serverReadyHandler},
		{MethodName: "ModelReady", Handler: modelReadyHandler},
		{MethodName: "ModelInfer", Handler: modelInferHandler},
		{MethodName: "UnifiedInfer", Handler: unifiedInferHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UnifiedInferStream",
			Handler:       unifiedInferStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "proto/prediction.proto",
}
