// Package rpc serves the tool registry over gRPC. Messages are the
// well-known protobuf types, so no generated stubs are needed:
//
//	List(google.protobuf.Empty) returns (google.protobuf.Struct)
//	  {"tools": [{"name", "description", "params"}]}
//	Invoke(google.protobuf.Struct) returns (google.protobuf.Struct)
//	  request  {"tool": "rot_all", "params": {...}}
//	  response {"invocation_id", "tool", "result"}
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cryptbreak.v1.Tools"

const (
	listMethod   = "/" + ServiceName + "/List"
	invokeMethod = "/" + ServiceName + "/Invoke"
)

// ToolsServer is the server side of cryptbreak.v1.Tools.
type ToolsServer interface {
	List(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterToolsServer registers srv on s.
func RegisterToolsServer(s grpc.ServiceRegistrar, srv ToolsServer) {
	s.RegisterService(&toolsServiceDesc, srv)
}

var toolsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ToolsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: listHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cryptbreak/v1/tools.proto",
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolsServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolsServer).List(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolsServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolsServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
