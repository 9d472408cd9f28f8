package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := NewMetrics()
	m.Observe("cif", "nexus", "ok", 9, 0, 20*time.Millisecond)
	m.Observe("cif", "nexus", "failed", 0, 2, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transforms.WithLabelValues("cif", "nexus", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transforms.WithLabelValues("cif", "nexus", "failed")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.BundlesWritten.WithLabelValues("nexus")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BundlesMissing.WithLabelValues("cif")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestObserve_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("cif", "nexus", "ok", 1, 0, 0)
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.Observe("cif", "nexus", "ok", 1, 0, 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `formatx_transforms_total{source="cif",status="ok",target="nexus"} 1`))
}
