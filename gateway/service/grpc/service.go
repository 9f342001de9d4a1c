package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "simplehash.v1.AnchorService"

const (
	submitAnchorMethod = "/" + ServiceName + "/SubmitAnchor"
	getAnchorMethod    = "/" + ServiceName + "/GetAnchor"
)

// AnchorServiceServer is the server API. Requests and responses are
// google.protobuf.Struct messages so that no generated code is needed.
type AnchorServiceServer interface {
	SubmitAnchor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnchor(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAnchorServiceServer registers srv with s.
func RegisterAnchorServiceServer(s grpc.ServiceRegistrar, srv AnchorServiceServer) {
	s.RegisterService(&AnchorService_ServiceDesc, srv)
}

func submitAnchorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnchorServiceServer).SubmitAnchor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitAnchorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnchorServiceServer).SubmitAnchor(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getAnchorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnchorServiceServer).GetAnchor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getAnchorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnchorServiceServer).GetAnchor(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AnchorService_ServiceDesc describes the anchor service for grpc.Server.
var AnchorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnchorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitAnchor", Handler: submitAnchorHandler},
		{MethodName: "GetAnchor", Handler: getAnchorHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simplehash/v1/anchor.proto",
}

// AnchorServiceClient calls the anchor service.
type AnchorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAnchorServiceClient wraps an established connection.
func NewAnchorServiceClient(cc grpc.ClientConnInterface) *AnchorServiceClient {
	return &AnchorServiceClient{cc: cc}
}

// SubmitAnchor queues an anchor request.
func (c *AnchorServiceClient) SubmitAnchor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, submitAnchorMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnchor fetches the state of a request.
func (c *AnchorServiceClient) GetAnchor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getAnchorMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
