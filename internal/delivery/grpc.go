package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	catalogv1 "pubcat/api/catalog/v1"
	"pubcat/internal/logger"
	"pubcat/internal/metrics"
	"pubcat/internal/search"
	"pubcat/internal/storage"
)

type CatalogServer struct {
	Searcher search.Searcher
}

var _ catalogv1.CatalogServer = (*CatalogServer)(nil)

func (s *CatalogServer) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	defer logger.Track(ctx, "grpc: Search")()

	var req catalogv1.SearchRequest
	if err := catalogv1.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Searcher.Search(ctx, req.Query, req.From, req.Size)
	if err != nil {
		return nil, toStatus(err)
	}
	return catalogv1.Encode(res)
}

func (s *CatalogServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req catalogv1.GetRequest
	if err := catalogv1.Decode(in, &req); err != nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	rec, err := s.Searcher.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return catalogv1.Encode(rec)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, search.ErrBadQuery):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// NewGRPCServer registers the catalog and the standard health service.
func NewGRPCServer(log *logrus.Logger, svc search.Searcher, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryLogger(log))}, opts...)
	s := grpc.NewServer(opts...)
	catalogv1.RegisterCatalogServer(s, &CatalogServer{Searcher: svc})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(catalogv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// unaryLogger picks up x-trace-id from metadata, logs and counts each call.
func unaryLogger(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-trace-id"); len(ids) > 0 {
				ctx = logger.ContextWithID(ctx, ids[0])
			}
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.GRPCRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()

		entry := log.WithFields(logrus.Fields{
			"method":     info.FullMethod,
			"code":       code.String(),
			"took":       time.Since(start),
			"request_id": logger.IDFrom(ctx),
		})
		if code == codes.Internal || code == codes.Unknown {
			entry.WithError(err).Error("grpc.request")
		} else {
			entry.Info("grpc.request")
		}
		return resp, err
	}
}
