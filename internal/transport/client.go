package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"

	pb "formattransformer/api/proto/v1"
	"formattransformer/internal/jobspec"
)

// Client talks to a TransformService.
type Client struct {
	conn   *grpc.ClientConn
	svc    pb.TransformServiceClient
	health healthpb.HealthClient
}

// Dial connects to target; without options the connection is insecure.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:   conn,
		svc:    pb.NewTransformServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *Client) Transform(ctx context.Context, req jobspec.Request) (Result, error) {
	in, err := requestToStruct(req)
	if err != nil {
		return Result{}, err
	}
	out, err := c.svc.Transform(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return resultFromStruct(out), nil
}

func (c *Client) Formats(ctx context.Context) ([]string, error) {
	out, err := c.svc.Formats(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	return listToStrings(out.GetFields()[fFormats]), nil
}

// Healthy reports whether the server answers SERVING.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
