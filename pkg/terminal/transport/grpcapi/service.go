// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     grpcapi
// Description: gRPC transport: unary Route carrying JSON envelopes
// License:     MIT
// ============================================================================

// Package grpcapi serves terminal requests over gRPC. The single unary
// method mdwterm.v1.TerminalRouter/Route takes a TerminalInput as JSON in a
// google.protobuf.StringValue and answers with the TerminalOutput the same
// way.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service and method names
const (
	ServiceName = "mdwterm.v1.TerminalRouter"
	RouteMethod = "/" + ServiceName + "/Route"
)

// TerminalRouterServer is the server API of the service
type TerminalRouterServer interface {
	Route(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// RegisterTerminalRouterServer registers srv on s
func RegisterTerminalRouterServer(s grpc.ServiceRegistrar, srv TerminalRouterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func routeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TerminalRouterServer).Route(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RouteMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TerminalRouterServer).Route(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TerminalRouterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Route", Handler: routeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mdwterm/v1/terminal.proto",
}
