package tracing

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor wraps unary handlers in a server span.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = ExtractMetadata(ctx)
		attrs := map[string]any{"rpc.system": "grpc", "rpc.grpc.type": "unary"}
		service, method := splitMethod(info.FullMethod)
		if service != "" {
			attrs["rpc.service"] = service
		}
		if method != "" {
			attrs["rpc.method"] = method
		}
		ctx, span := StartSpan(ctx, info.FullMethod, WithSpanKind(SpanKindServer), WithAttributes(attrs))
		resp, err := handler(ctx, req)
		span.SetAttributes(attributeKV("rpc.grpc.status_code", int64(status.Code(err))))
		EndSpan(span, err)
		return resp, err
	}
}

// UnaryClientInterceptor propagates the caller's span to the server.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := StartSpan(ctx, method, WithSpanKind(SpanKindClient), WithAttributes(map[string]any{"rpc.system": "grpc"}))
		err := invoker(InjectMetadata(ctx), method, req, reply, cc, opts...)
		EndSpan(span, err)
		return err
	}
}

func splitMethod(full string) (string, string) {
	full = strings.TrimPrefix(full, "/")
	parts := strings.Split(full, "/")
	if len(parts) != 2 {
		return full, ""
	}
	return parts[0], parts[1]
}
