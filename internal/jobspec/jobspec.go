// Package jobspec holds the transformation request and the job file that
// describes one.
package jobspec

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint names one side of a transformation.
type Endpoint struct {
	Format  string            `yaml:"format" json:"format"`
	Path    string            `yaml:"path" json:"path"`
	Options map[string]string `yaml:"options" json:"options,omitempty"` // adapter specific
}

func (e Endpoint) String() string { return e.Format + ":" + e.Path }

// Request is everything a driver needs for one transformation.
type Request struct {
	BundleFile string   `json:"bundle_file"`
	Source     Endpoint `json:"source"`
	Target     Endpoint `json:"target"`
}

// Validate reports every empty field of the request.
func (r Request) Validate() error {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"bundle file", r.BundleFile},
		{"source format", r.Source.Format},
		{"source path", r.Source.Path},
		{"target format", r.Target.Format},
		{"target path", r.Target.Path},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

var ErrInvalidRequest = errors.New("invalid request")

type SinkConfigs struct {
	Kafka  yaml.Node `yaml:"kafka"`
	Stdout yaml.Node `yaml:"stdout"`
}

// Decode fills out from the config block of sink name. An absent block
// leaves out untouched.
func (s SinkConfigs) Decode(name string, out any) error {
	var n yaml.Node
	switch name {
	case "kafka":
		n = s.Kafka
	case "stdout":
		n = s.Stdout
	default:
		return fmt.Errorf("no config block for sink %q", name)
	}
	if n.Kind == 0 {
		return nil
	}
	return n.Decode(out)
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Bundles    string   `yaml:"bundles"`    // bundle-name file
	Dictionary string   `yaml:"dictionary"` // optional, embedded default otherwise
	Source     Endpoint `yaml:"source"`
	Target     Endpoint `yaml:"target"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs SinkConfigs `yaml:"sink_configs"`
}

func (f File) Request() Request {
	return Request{BundleFile: f.Bundles, Source: f.Source, Target: f.Target}
}

// OptionKeys returns the sorted option keys of e, for logging.
func (e Endpoint) OptionKeys() []string {
	out := make([]string, 0, len(e.Options))
	for k := range e.Options {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
