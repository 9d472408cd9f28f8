package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"formattransformer/internal/jobspec"
)

const SupportedSchema = "v1"

// LoadJobSpec parses a job YAML, validates schema_version, and resolves the
// bundle file, dictionary and endpoint paths against the job file's
// directory.
func LoadJobSpec(path string) (jobspec.File, error) {
	var cfg jobspec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("job %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, fmt.Errorf("job schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Bundles, &cfg.Dictionary, &cfg.Source.Path, &cfg.Target.Path} {
		*p = resolve(dir, *p)
	}
	if err := cfg.Request().Validate(); err != nil {
		return cfg, fmt.Errorf("job %s: %w", path, err)
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
