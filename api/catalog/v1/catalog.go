// Package catalogv1 is the gRPC contract of the catalog service.
//
// Messages are google.protobuf.Struct values carrying the JSON form of the
// request and response types below, so the service needs no generated code
// and stays readable with grpcurl.
package catalogv1

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "pubcat.catalog.v1.Catalog"

const (
	SearchMethod = "/" + ServiceName + "/Search"
	GetMethod    = "/" + ServiceName + "/Get"
)

type SearchRequest struct {
	Query string `json:"query"`
	From  int    `json:"from"`
	Size  int    `json:"size"`
}

type GetRequest struct {
	ID string `json:"id"`
}

// CatalogServer is implemented by the delivery layer.
type CatalogServer interface {
	Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: unaryHandler(SearchMethod, CatalogServer.Search)},
		{MethodName: "Get", Handler: unaryHandler(GetMethod, CatalogServer.Get)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pubcat/catalog/v1",
}

type unaryMethod func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, m unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(CatalogServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CatalogClient is the client side of the contract.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) Search(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SearchMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode converts any JSON-serializable value into a Struct.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode: %T is not an object: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from s through its JSON form.
func Decode(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
