package rgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified grpc service name, also used for health checks.
const ServiceName = "repyable.Session"

const (
	methodSchema  = "/" + ServiceName + "/Schema"
	methodProduce = "/" + ServiceName + "/Produce"
	methodPop     = "/" + ServiceName + "/Pop"
	methodGet     = "/" + ServiceName + "/Get"
	methodLen     = "/" + ServiceName + "/Len"
	methodStream  = "/" + ServiceName + "/Stream"
)

// SessionServer is the server API of the repyable.Session service. Events
// travel as queue envelopes in BytesValue messages.
type SessionServer interface {
	// Schema returns the textual session schema.
	Schema(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)

	// Produce appends the block of the envelope and returns its index.
	Produce(context.Context, *wrapperspb.BytesValue) (*wrapperspb.Int64Value, error)

	// Pop removes the next envelope from the session queue.
	Pop(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)

	// Get returns the envelope of the event at an index.
	Get(context.Context, *wrapperspb.Int64Value) (*wrapperspb.BytesValue, error)

	// Len returns the number of events in the session buffer.
	Len(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)

	// Stream streams envelopes of the events after a cursor.
	Stream(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// ServiceDesc describes the repyable.Session service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Schema",
			Handler:    unary(methodSchema, SessionServer.Schema),
		},
		{
			MethodName: "Produce",
			Handler:    unary(methodProduce, SessionServer.Produce),
		},
		{
			MethodName: "Pop",
			Handler:    unary(methodPop, SessionServer.Pop),
		},
		{
			MethodName: "Get",
			Handler:    unary(methodGet, SessionServer.Get),
		},
		{
			MethodName: "Len",
			Handler:    unary(methodLen, SessionServer.Len),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
}

// unary returns the grpc handler calling method of SessionServer.
func unary[Req, Res any](fullMethod string,
	method func(SessionServer, context.Context, *Req) (*Res, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error,
		interceptor grpc.UnaryServerInterceptor,
	) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(SessionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(SessionServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SessionServer).Stream(in,
		&grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// Register registers the session server with the grpc server.
func Register(r grpc.ServiceRegistrar, srv SessionServer) {
	r.RegisterService(&ServiceDesc, srv)
}
