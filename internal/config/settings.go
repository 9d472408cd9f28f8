package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides; "__" separates nesting levels,
// e.g. FORMATX__SERVE__GRPC_PORT=7171.
const EnvPrefix = "FORMATX__"

type LogCfg struct {
	Level  string `koanf:"level"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"` // add file:line to records
}

type ServeCfg struct {
	GRPCPort       int           `koanf:"grpc_port"`
	MetricsPort    int           `koanf:"metrics_port"`
	MaxInFlight    int64         `koanf:"max_in_flight"`   // concurrent transforms
	RefillInterval time.Duration `koanf:"refill_interval"` // limiter tick
}

type IntakeCfg struct {
	Kafka string `koanf:"kafka"` // kafka intake config file; empty disables it
}

// Settings are the process-wide knobs, as opposed to a job file.
type Settings struct {
	Log        LogCfg    `koanf:"log"`
	Dictionary string    `koanf:"dictionary"`
	Serve      ServeCfg  `koanf:"serve"`
	Intake     IntakeCfg `koanf:"intake"`
}

// LoadSettings merges YAML (if present) with FORMATX__ env-vars.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("settings %s: %w", path, err)
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Settings{}, fmt.Errorf("settings schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("settings: %w", err)
	}
	applyDefaults(&s)
	return s, nil
}

// envKey maps FORMATX__SERVE__GRPC_PORT to serve.grpc_port.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func applyDefaults(s *Settings) {
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Serve.GRPCPort == 0 {
		s.Serve.GRPCPort = 7070
	}
	if s.Serve.MetricsPort == 0 {
		s.Serve.MetricsPort = 9100
	}
	if s.Serve.MaxInFlight <= 0 {
		s.Serve.MaxInFlight = 4
	}
	if s.Serve.RefillInterval <= 0 {
		s.Serve.RefillInterval = 100 * time.Millisecond
	}
}
