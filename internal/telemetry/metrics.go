package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formattransformer/internal/logging"
)

// Metrics holds the transformation counters on a private registry so that
// several engines can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Transforms     *prometheus.CounterVec
	BundlesWritten *prometheus.CounterVec
	BundlesMissing *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formatx_transforms_total",
			Help: "Transformations run, by source and target format and status.",
		}, []string{"source", "target", "status"}),
		BundlesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formatx_bundles_written_total",
			Help: "Bundles written to the target format.",
		}, []string{"target"}),
		BundlesMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formatx_bundles_missing_total",
			Help: "Requested bundles the source did not carry.",
		}, []string{"source"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formatx_transform_duration_seconds",
			Help:    "Wall time of a transformation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"source", "target"}),
	}
	m.Registry.MustRegister(
		m.Transforms, m.BundlesWritten, m.BundlesMissing, m.Duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one finished transformation. A nil receiver is a no-op.
func (m *Metrics) Observe(source, target, status string, written, missing int, d time.Duration) {
	if m == nil {
		return
	}
	m.Transforms.WithLabelValues(source, target, status).Inc()
	m.BundlesWritten.WithLabelValues(target).Add(float64(written))
	m.BundlesMissing.WithLabelValues(source).Add(float64(missing))
	m.Duration.WithLabelValues(source, target).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Expose serves /metrics on port in the background.
func Expose(port int, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("telemetry: metrics server", "port", port, "err", err)
		}
	}()
	return srv
}
