package grpcapi

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"galemind/internal/buffer"
	"galemind/internal/manager"
	"galemind/internal/protocol"
)

// statusFromError maps pipeline errors to gRPC status codes.
func statusFromError(err error) error {
	switch {
	case err == nil:
		return nil
	case protocol.IsUnsupportedProtocol(err),
		protocol.IsMissingModel(err),
		protocol.IsMalformedContent(err),
		protocol.IsStreamError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case manager.IsModelNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case manager.IsModelNotReady(err), manager.IsUnloadAborted(err):
		return status.Error(codes.Unavailable, err.Error())
	case buffer.IsFull(err), buffer.IsPushTimeout(err):
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
