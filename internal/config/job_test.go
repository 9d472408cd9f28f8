package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"formattransformer/internal/jobspec"
)

func TestLoadJobSpec_ResolvesRelativePathsAndSchema(t *testing.T) {
	dir := t.TempDir()
	job := []byte(`schema_version: v1
bundles: data_bundle_names
source: { format: cif, path: testfiles/in.cif }
target:
  format: nexus
  path: /tmp/out.nx
  options: { codec: xml }
sinks: [stdout]
sink_configs:
  stdout: { print_counter: true }
`)
	if err := os.WriteFile(filepath.Join(dir, "job.yml"), job, 0o644); err != nil {
		t.Fatalf("write job: %v", err)
	}

	cfg, err := LoadJobSpec(filepath.Join(dir, "job.yml"))
	if err != nil {
		t.Fatalf("LoadJobSpec: %v", err)
	}
	if cfg.SchemaVersion != SupportedSchema {
		t.Fatalf("want schema %s, got %s", SupportedSchema, cfg.SchemaVersion)
	}
	if want := filepath.Join(dir, "data_bundle_names"); cfg.Bundles != want {
		t.Fatalf("bundles: want %q, got %q", want, cfg.Bundles)
	}
	if want := filepath.Join(dir, "testfiles", "in.cif"); cfg.Source.Path != want {
		t.Fatalf("source: want %q, got %q", want, cfg.Source.Path)
	}
	if cfg.Target.Path != "/tmp/out.nx" {
		t.Fatalf("absolute target path changed: %q", cfg.Target.Path)
	}
	if cfg.Dictionary != "" {
		t.Fatalf("empty dictionary should stay empty, got %q", cfg.Dictionary)
	}
	if cfg.Target.Options["codec"] != "xml" {
		t.Fatalf("target options not parsed: %v", cfg.Target.Options)
	}

	var sc struct {
		PrintCounter bool `yaml:"print_counter"`
	}
	if err := cfg.SinkConfigs.Decode("stdout", &sc); err != nil || !sc.PrintCounter {
		t.Fatalf("stdout sink config: %+v, %v", sc, err)
	}
}

func TestLoadJobSpec_DefaultsSchema(t *testing.T) {
	dir := t.TempDir()
	job := []byte("bundles: b\nsource: {format: cif, path: a}\ntarget: {format: nexus, path: b}\n")
	if err := os.WriteFile(filepath.Join(dir, "job.yml"), job, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadJobSpec(filepath.Join(dir, "job.yml"))
	if err != nil {
		t.Fatalf("LoadJobSpec: %v", err)
	}
	if cfg.SchemaVersion != SupportedSchema {
		t.Fatalf("schema not defaulted: %q", cfg.SchemaVersion)
	}
}

func TestLoadJobSpec_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	job := []byte(`schema_version: v999
bundles: b
source: { format: cif, path: in.cif }
target: { format: nexus, path: out.nx }
`)
	if err := os.WriteFile(filepath.Join(dir, "job.yml"), job, 0o644); err != nil {
		t.Fatalf("write job: %v", err)
	}
	_, err := LoadJobSpec(filepath.Join(dir, "job.yml"))
	if err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}

func TestLoadJobSpec_IncompleteRequest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "job.yml"), []byte("source: {format: cif}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadJobSpec(filepath.Join(dir, "job.yml"))
	if !errors.Is(err, jobspec.ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
}
