package engine

import (
	"time"

	"formattransformer/internal/config"
)

type Config struct {
	GRPCPort       int
	MetricsPort    int
	MaxInFlight    int64
	RefillInterval time.Duration
	Dictionary     string // empty → embedded
	Job            string // optional job file supplying dictionary and sinks
	KafkaIntake    string // optional kafka intake config file
}

// FromSettings maps process settings onto an engine Config.
func FromSettings(s config.Settings) Config {
	return Config{
		GRPCPort:       s.Serve.GRPCPort,
		MetricsPort:    s.Serve.MetricsPort,
		MaxInFlight:    s.Serve.MaxInFlight,
		RefillInterval: s.Serve.RefillInterval,
		Dictionary:     s.Dictionary,
		KafkaIntake:    s.Intake.Kafka,
	}
}
