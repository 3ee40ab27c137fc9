package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "netkeeper.drule.v1.DRuleService"

// DRuleServer is the server side of the discovery rule API. Every method
// takes and returns a google.protobuf.Struct.
type DRuleServer interface {
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsReadable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsWritable(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(DRuleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// DRuleServiceDesc describes the service for grpc.Server.RegisterService.
var DRuleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DRuleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Get", DRuleServer.Get),
		unary("Create", DRuleServer.Create),
		unary("Update", DRuleServer.Update),
		unary("Delete", DRuleServer.Delete),
		unary("IsReadable", DRuleServer.IsReadable),
		unary("IsWritable", DRuleServer.IsWritable),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netkeeper/drule/v1/drule.proto",
}

// RegisterDRuleServer registers srv on s.
func RegisterDRuleServer(s grpc.ServiceRegistrar, srv DRuleServer) {
	s.RegisterService(&DRuleServiceDesc, srv)
}

func unary(name string, call method) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DRuleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DRuleServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// DRuleClient calls the discovery rule API over a client connection.
type DRuleClient struct {
	cc grpc.ClientConnInterface
}

// NewDRuleClient wraps cc.
func NewDRuleClient(cc grpc.ClientConnInterface) *DRuleClient {
	return &DRuleClient{cc: cc}
}

func (c *DRuleClient) invoke(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DRuleClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Get", in, opts...)
}

func (c *DRuleClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Create", in, opts...)
}

func (c *DRuleClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Update", in, opts...)
}

func (c *DRuleClient) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Delete", in, opts...)
}

func (c *DRuleClient) IsReadable(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "IsReadable", in, opts...)
}

func (c *DRuleClient) IsWritable(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "IsWritable", in, opts...)
}
