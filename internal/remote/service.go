package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName   = "pmctl.v1.ProcessManager"
	executeMethod = "/" + serviceName + "/Execute"

	fieldCommand = "command"
	fieldArgs    = "args"
)

// Handler answers remote commands on the daemon side. Returned values must
// be JSON-encodable; errors should carry a gRPC status.
type Handler interface {
	Execute(ctx context.Context, command string, args json.RawMessage) (any, error)
}

// Register exposes h on the gRPC server.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&serviceDesc, h)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pmctl/v1/process_manager.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return serveExecute(ctx, srv.(Handler), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: executeMethod,
	}
	return interceptor(ctx, in, info, call)
}

func serveExecute(ctx context.Context, h Handler, req *structpb.Struct) (*structpb.Value, error) {
	command := req.GetFields()[fieldCommand].GetStringValue()
	if command == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}
	var args json.RawMessage
	if v, ok := req.GetFields()[fieldArgs]; ok {
		raw, err := json.Marshal(v.AsInterface())
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode args: %v", err)
		}
		args = raw
	}
	out, err := h.Execute(ctx, command, args)
	if err != nil {
		return nil, err
	}
	reply, err := toValue(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s reply: %v", command, err)
	}
	return reply, nil
}

func newRequest(command string, args any) (*structpb.Struct, error) {
	v, err := toValue(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", command, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCommand: structpb.NewStringValue(command),
		fieldArgs:    v,
	}}, nil
}

// toValue converts any JSON-encodable value into a protobuf Value by way of
// its JSON form, so struct tags decide the wire shape.
func toValue(v any) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

func fromValue(v *structpb.Value, out any) error {
	if out == nil || v == nil {
		return nil
	}
	raw, err := json.Marshal(v.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
