package narrative

import (
	"context"

	"github.com/louisbranch/branching.ink/internal/platform/requestctx"
	"google.golang.org/grpc"
)

// RequestContextUnaryInterceptor copies gateway identity headers into the
// request context.
func RequestContextUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(requestctx.FromIncomingMetadata(ctx), req)
	}
}

// RequestContextStreamInterceptor is the streaming counterpart of
// RequestContextUnaryInterceptor.
func RequestContextStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &contextStream{ServerStream: stream, ctx: requestctx.FromIncomingMetadata(stream.Context())})
	}
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}
