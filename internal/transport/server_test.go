package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"formattransformer/internal/bundle"
	"formattransformer/internal/jobspec"
	"formattransformer/internal/pipeline"
)

func startBufServer(t *testing.T, svc *Service) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(lis, svc)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	c, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func runnerOnMemFs(t *testing.T, names []string) *pipeline.Runner {
	t.Helper()
	raw, err := os.ReadFile("../../testfiles/multi-image-test.cif")
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in.cif", raw, 0o644))
	require.NoError(t, bundle.WriteNames(fs, "names", names))
	r := pipeline.NewRunner(nil)
	r.SetFs(fs)
	return r
}

func goodRequest() jobspec.Request {
	return jobspec.Request{
		BundleFile: "names",
		Source:     jobspec.Endpoint{Format: "cif", Path: "in.cif"},
		Target:     jobspec.Endpoint{Format: "nexus", Path: "out.nx", Options: map[string]string{"codec": "xml"}},
	}
}

func TestService_TransformOverGRPC(t *testing.T) {
	r := runnerOnMemFs(t, []string{"incident wavelength", "wavelength id", "detector axis id"})
	c := startBufServer(t, NewService(r, NewLimiter(2, 10*time.Millisecond)))

	res, err := c.Transform(context.Background(), goodRequest())
	require.NoError(t, err)
	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"incident wavelength", "wavelength id", "detector axis id"}, res.Written)
	assert.Empty(t, res.Missing)
}

func TestService_ErrorCodes(t *testing.T) {
	c := startBufServer(t, NewService(runnerOnMemFs(t, []string{"sample colour"}), nil))
	ctx := context.Background()

	req := goodRequest()
	req.Target.Path = ""
	_, err := c.Transform(ctx, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Transform(ctx, goodRequest())
	assert.Equal(t, codes.NotFound, status.Code(err), "unknown bundle")

	req = goodRequest()
	req.Source.Format = "fits"
	_, err = c.Transform(ctx, req)
	assert.Equal(t, codes.NotFound, status.Code(err), "unknown format")

	req = goodRequest()
	req.BundleFile = "absent"
	_, err = c.Transform(ctx, req)
	assert.Equal(t, codes.NotFound, status.Code(err), "missing bundle file")
}

func TestService_FormatsAndHealth(t *testing.T) {
	c := startBufServer(t, NewService(pipeline.NewRunner(nil), nil))
	ctx := context.Background()

	formats, err := c.Formats(ctx)
	require.NoError(t, err)
	assert.Contains(t, formats, "cif")
	assert.Contains(t, formats, "nexus")

	ok, err := c.Healthy(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

type stuckRunner struct{ entered chan struct{} }

func (s stuckRunner) Transform(ctx context.Context, req jobspec.Request) (pipeline.Report, error) {
	s.entered <- struct{}{}
	<-ctx.Done()
	return pipeline.Report{}, ctx.Err()
}

func TestService_LimiterBoundsInFlight(t *testing.T) {
	lim := NewLimiter(1, 5*time.Millisecond)
	defer lim.Close()
	run := stuckRunner{entered: make(chan struct{}, 2)}
	svc := NewService(run, lim)

	in, err := requestToStruct(goodRequest())
	require.NoError(t, err)

	ctx1, cancel1 := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { _, err := svc.Transform(ctx1, in); done <- err }()
	<-run.entered

	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	_, err = svc.Transform(ctx2, in)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	cancel1()
	assert.Equal(t, codes.Canceled, status.Code(<-done))
	assert.Equal(t, int64(1), lim.Available())
}

func TestRequestFromStruct_Rejects(t *testing.T) {
	bad := []map[string]any{
		{"bundle_file": 3.0},
		{"colour": "blue"},
		{"source_options": "codec=xml"},
		{"target_options": map[string]any{"codec": true}},
	}
	for _, m := range bad {
		s, err := structpb.NewStruct(m)
		require.NoError(t, err)
		_, err = requestFromStruct(s)
		assert.Error(t, err, "%v", m)
	}

	s, err := requestToStruct(goodRequest())
	require.NoError(t, err)
	got, err := requestFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, goodRequest(), got)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("disk full"))))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.NotFound, status.Code(toStatus(os.ErrNotExist)))
}

func TestServer_CloseReleasesUnservedListener(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()

	srv := NewServer(lis, NewService(pipeline.NewRunner(nil), nil))
	require.NoError(t, srv.Close())

	again, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port still held")
	require.NoError(t, again.Close())
}
