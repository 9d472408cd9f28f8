package engine

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"formattransformer/intake/kafka"
	"formattransformer/internal/jobspec"
	"formattransformer/internal/logging"
	"formattransformer/internal/pipeline"
	"formattransformer/internal/transport"
)

type Engine struct {
	transport *transport.Server
	runner    *pipeline.Runner
	limiter   *transport.Limiter
	intake    kafka.Adapter // nil unless configured
	metrics   *http.Server
}

func (e *Engine) Addr() net.Addr { return e.transport.Addr() }

// Run serves until ctx is cancelled, then drains in-flight calls and
// releases the sinks.
func (e *Engine) Run(ctx context.Context) error {
	intakeDone := make(chan struct{})
	if e.intake != nil {
		go func() {
			defer close(intakeDone)
			if err := e.intake.Run(ctx, e.handleIntake); err != nil && ctx.Err() == nil {
				logging.L().Error("engine: kafka intake stopped", "err", err)
			}
		}()
	} else {
		close(intakeDone)
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logging.L().Info("engine: shutting down")
		e.limiter.Close()
		e.transport.Stop()
		<-intakeDone
		var err error
		if e.intake != nil {
			err = e.intake.Close()
		}

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, e.metrics.Shutdown(sctx))
		stopped <- multierr.Append(err, e.runner.Close())
	}()

	if err := e.transport.Serve(); err != nil {
		return err
	}
	return <-stopped
}

// handleIntake runs a request from the kafka intake under the same
// in-flight bound as gRPC calls.
func (e *Engine) handleIntake(ctx context.Context, req jobspec.Request) error {
	if err := e.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer e.limiter.Release(1)
	_, err := e.runner.Transform(ctx, req)
	return err
}
