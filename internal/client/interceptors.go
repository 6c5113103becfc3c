package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/pesio-ai/be-ar-nonpayment/internal/middleware"
)

const requestIDKey = "x-request-id"

// forwardMetadata propagates incoming request metadata (including the
// caller's auth token) to outgoing calls, and tags the call with the HTTP
// request id when the call originates from the REST API.
func forwardMetadata(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		out := md.Copy()
		out.Delete(requestIDKey)
		ctx = metadata.NewOutgoingContext(ctx, out)
	}
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, requestIDKey, id)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}
