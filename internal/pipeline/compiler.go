package pipeline

import (
	"fmt"

	"formattransformer/internal/config"
	"formattransformer/internal/dictionary"
	"formattransformer/internal/jobspec"
	"formattransformer/sink"
	"formattransformer/sink/kafka"
	"formattransformer/sink/stdout"
)

// Compile builds a Runner and the Request it should run from a job file.
// defaultDict is used when the job names no dictionary; empty means the
// embedded one.
func Compile(path, defaultDict string) (*Runner, jobspec.Request, error) {
	cfg, err := config.LoadJobSpec(path)
	if err != nil {
		return nil, jobspec.Request{}, err
	}
	dictPath := cfg.Dictionary
	if dictPath == "" {
		dictPath = defaultDict
	}
	dict, err := dictionary.Load(dictPath)
	if err != nil {
		return nil, jobspec.Request{}, err
	}

	r := NewRunner(dict)
	if err := AddSinks(r, cfg.Sinks, cfg.SinkConfigs); err != nil {
		_ = r.Close()
		return nil, jobspec.Request{}, err
	}
	return r, cfg.Request(), nil
}

// AddSinks configures the named sinks from their config blocks and adds
// them to r.
func AddSinks(r *Runner, names []string, configs jobspec.SinkConfigs) error {
	for _, name := range names {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}

		switch name {
		case "stdout":
			var c stdout.Config
			if err = configs.Decode(name, &c); err == nil {
				err = sDrv.Configure(c)
			}
		case "kafka":
			var c kafka.Config
			if err = configs.Decode(name, &c); err == nil {
				err = sDrv.Configure(c)
			}
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return fmt.Errorf("sink %s: %w", name, err)
		}
		r.AddSink(sDrv)
	}
	return nil
}
