package main

import (
	"github.com/spf13/cobra"

	"formattransformer/internal/engine"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var job, intake string
	var grpcPort, metricsPort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve transformations over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := engine.FromSettings(root.settings)
			cfg.Job = job
			if cmd.Flags().Changed("grpc-port") {
				cfg.GRPCPort = grpcPort
			}
			if intake != "" {
				cfg.KafkaIntake = intake
			}
			if cmd.Flags().Changed("metrics-port") {
				cfg.MetricsPort = metricsPort
			}
			e, err := engine.Bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return e.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job file whose dictionary and sinks the server uses")
	cmd.Flags().StringVar(&intake, "kafka-intake", "", "kafka intake config file; overrides intake.kafka")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "override serve.grpc_port")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "override serve.metrics_port")
	return cmd
}
