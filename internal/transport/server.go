package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	pb "formattransformer/api/proto/v1"
	"formattransformer/format"
	"formattransformer/internal/jobspec"
	"formattransformer/internal/logging"
	"formattransformer/internal/pipeline"
)

// Transformer runs one transformation; *pipeline.Runner satisfies it.
type Transformer interface {
	Transform(ctx context.Context, req jobspec.Request) (pipeline.Report, error)
}

type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	health *health.Server
}

func StartServer(port int, svc *Service, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return NewServer(lis, svc, opts...), nil
}

// NewServer registers svc and the health service on a server bound to lis.
func NewServer(lis net.Listener, svc *Service, opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		lis:    lis,
		health: health.NewServer(),
	}
	pb.RegisterTransformServiceServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(pb.TransformService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	logging.L().Info("transport: serving", "addr", s.lis.Addr().String())
	return s.grpc.Serve(s.lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Close stops the server and releases the listener, which GracefulStop
// leaves open when Serve was never called.
func (s *Server) Close() error {
	s.Stop()
	if err := s.lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

/*──────── service ───────*/

type Service struct {
	pb.UnimplementedTransformServiceServer

	runner  Transformer
	limiter *Limiter
}

// NewService wraps runner; limiter may be nil for no bound.
func NewService(runner Transformer, limiter *Limiter) *Service {
	return &Service{runner: runner, limiter: limiter}
}

func (s *Service) Transform(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, ErrLimiterClosed) {
				return nil, status.Error(codes.Unavailable, err.Error())
			}
			return nil, status.FromContextError(err).Err()
		}
		defer s.limiter.Release(1)
	}

	rep, err := s.runner.Transform(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := reportToStruct(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Service) Formats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{fFormats: stringsToList(format.Formats())})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, jobspec.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case pipeline.IsNotFound(err), errors.Is(err, fs.ErrNotExist):
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
