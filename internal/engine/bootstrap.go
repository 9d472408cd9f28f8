package engine

import (
	"context"
	"fmt"

	"formattransformer/intake/kafka"
	"formattransformer/internal/dictionary"
	"formattransformer/internal/logging"
	"formattransformer/internal/pipeline"
	"formattransformer/internal/telemetry"
	"formattransformer/internal/transport"
)

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. pipeline runner
	var runner *pipeline.Runner
	if cfg.Job != "" {
		r, _, err := pipeline.Compile(cfg.Job, cfg.Dictionary)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		runner = r
	} else {
		dict, err := dictionary.Load(cfg.Dictionary)
		if err != nil {
			return nil, err
		}
		runner = pipeline.NewRunner(dict)
	}
	metrics := telemetry.NewMetrics()
	runner.SetMetrics(metrics)

	// 2. transport server
	limiter := transport.NewLimiter(cfg.MaxInFlight, cfg.RefillInterval)
	srv, err := transport.StartServer(cfg.GRPCPort, transport.NewService(runner, limiter))
	if err != nil {
		limiter.Close()
		_ = runner.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 3. optional kafka intake
	var intake kafka.Adapter
	if cfg.KafkaIntake != "" {
		if intake, err = newIntake(cfg.KafkaIntake); err != nil {
			_ = srv.Close()
			limiter.Close()
			_ = runner.Close()
			return nil, fmt.Errorf("intake: %w", err)
		}
	}

	// 4. metrics
	ms := telemetry.Expose(cfg.MetricsPort, metrics)
	logging.L().Info("engine: bootstrapped", "grpc", srv.Addr().String(), "metrics_port", cfg.MetricsPort,
		"max_in_flight", cfg.MaxInFlight, "kafka_intake", intake != nil)

	return &Engine{
		transport: srv,
		runner:    runner,
		limiter:   limiter,
		intake:    intake,
		metrics:   ms,
	}, nil
}

func newIntake(path string) (kafka.Adapter, error) {
	kc, err := kafka.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	a, err := kafka.NewAdapter(kc.Driver)
	if err != nil {
		return nil, err
	}
	if err := a.Configure(kc); err != nil {
		return nil, err
	}
	return a, nil
}
