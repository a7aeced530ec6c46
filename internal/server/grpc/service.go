package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service is declared by hand over structpb.Struct messages, so no
// generated code is needed on either side.
const serviceName = "scriptureforge.v1.OfflineStore"

const (
	MethodGetChapter       = "/" + serviceName + "/GetChapter"
	MethodListTranslations = "/" + serviceName + "/ListTranslations"
	MethodTranslateChapter = "/" + serviceName + "/TranslateChapter"
	MethodChat             = "/" + serviceName + "/Chat"
)

// OfflineStoreServer is the server API of the offline store daemon.
type OfflineStoreServer interface {
	GetChapter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListTranslations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	TranslateChapter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(s OfflineStoreServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func methodHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OfflineStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OfflineStoreServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OfflineStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetChapter", Handler: methodHandler(MethodGetChapter, OfflineStoreServer.GetChapter)},
		{MethodName: "ListTranslations", Handler: methodHandler(MethodListTranslations, OfflineStoreServer.ListTranslations)},
		{MethodName: "TranslateChapter", Handler: methodHandler(MethodTranslateChapter, OfflineStoreServer.TranslateChapter)},
		{MethodName: "Chat", Handler: methodHandler(MethodChat, OfflineStoreServer.Chat)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scriptureforge/v1/offline_store.proto",
}

// Client calls the daemon.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetChapter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetChapter, in, opts...)
}

func (c *Client) ListTranslations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListTranslations, in, opts...)
}

func (c *Client) TranslateChapter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodTranslateChapter, in, opts...)
}

func (c *Client) Chat(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodChat, in, opts...)
}
