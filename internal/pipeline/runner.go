package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"formattransformer/format"
	_ "formattransformer/format/cif"
	_ "formattransformer/format/nexus"
	"formattransformer/internal/bundle"
	"formattransformer/internal/dictionary"
	"formattransformer/internal/ir"
	"formattransformer/internal/jobspec"
	"formattransformer/internal/logging"
	"formattransformer/internal/telemetry"
	"formattransformer/sink"
)

// Report summarises one transformation.
type Report struct {
	ID       uuid.UUID
	Request  jobspec.Request
	Written  []string // bundles handed to the target, in request order
	Missing  []string // requested bundles the source did not carry
	Started  time.Time
	Duration time.Duration
}

// Runner drives transformations: it reads the bundle list, moves the
// bundles from the source adapter to the target adapter and reports the
// outcome to its sinks and metrics. A configured Runner is safe for
// concurrent use.
type Runner struct {
	dict    *dictionary.Dictionary
	fs      afero.Fs
	sinks   []sink.Adapter
	metrics *telemetry.Metrics
}

func NewRunner(dict *dictionary.Dictionary) *Runner {
	if dict == nil {
		dict = dictionary.Default()
	}
	return &Runner{dict: dict, fs: afero.NewOsFs()}
}

func (r *Runner) AddSink(s sink.Adapter)             { r.sinks = append(r.sinks, s) }
func (r *Runner) SetFs(fs afero.Fs)                  { r.fs = fs }
func (r *Runner) SetMetrics(m *telemetry.Metrics)    { r.metrics = m }
func (r *Runner) Dictionary() *dictionary.Dictionary { return r.dict }

// ManageTransform runs one transformation and discards the report.
func (r *Runner) ManageTransform(ctx context.Context, req jobspec.Request) error {
	_, err := r.Transform(ctx, req)
	return err
}

func (r *Runner) Transform(ctx context.Context, req jobspec.Request) (rep Report, err error) {
	rep = Report{ID: uuid.New(), Request: req, Started: time.Now()}
	log := logging.L().With("id", rep.ID.String(), "source", req.Source.String(), "target", req.Target.String())

	var names []string
	defer func() {
		rep.Duration = time.Since(rep.Started)
		r.finish(log, rep, names, err)
	}()

	if err = req.Validate(); err != nil {
		return rep, err
	}

	/*──────── bundle list ───────*/
	if names, err = bundle.ReadNames(r.fs, req.BundleFile); err != nil {
		return rep, fmt.Errorf("bundles: %w", err)
	}
	log.Debug("pipeline: bundle list read", "file", req.BundleFile, "count", len(names),
		"source_options", req.Source.OptionKeys(), "target_options", req.Target.OptionKeys())

	/*──────── adapters ───────*/
	src, err := r.adapter(req.Source)
	if err != nil {
		return rep, fmt.Errorf("source %s: %w", req.Source.Format, err)
	}
	dst, err := r.adapter(req.Target)
	if err != nil {
		return rep, fmt.Errorf("target %s: %w", req.Target.Format, err)
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}

	/*──────── read ───────*/
	set, err := src.Read(ctx, req.Source.Path, names)
	if err != nil {
		return rep, fmt.Errorf("source %s: %w", req.Source.Format, err)
	}
	rep.Missing = missing(names, set)
	for _, m := range rep.Missing {
		log.Warn("pipeline: bundle not found in source", "bundle", m)
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}

	/*──────── write ───────*/
	if err = dst.Write(ctx, req.Target.Path, set); err != nil {
		return rep, fmt.Errorf("target %s: %w", req.Target.Format, err)
	}
	rep.Written = set.Names()
	return rep, nil
}

func (r *Runner) adapter(e jobspec.Endpoint) (format.Adapter, error) {
	a, err := format.NewAdapter(e.Format)
	if err != nil {
		return nil, err
	}
	if err := a.Configure(format.Options{Dictionary: r.dict, Params: e.Options, Fs: r.fs}); err != nil {
		return nil, err
	}
	return a, nil
}

// missing lists the requested names absent from set, each once.
func missing(names []string, set *ir.Set) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range names {
		if _, ok := set.Get(n); ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

/*──────── reporting ───────*/

func (r *Runner) finish(log *slog.Logger, rep Report, names []string, err error) {
	status := sink.StatusOK
	if err != nil {
		status = sink.StatusFailed
		log.Error("pipeline: transform failed", "err", err, "duration", rep.Duration)
	} else {
		log.Info("pipeline: transform done", "written", len(rep.Written), "missing", len(rep.Missing), "duration", rep.Duration)
	}
	r.metrics.Observe(rep.Request.Source.Format, rep.Request.Target.Format, string(status),
		len(rep.Written), len(rep.Missing), rep.Duration)

	ev := &sink.Event{
		ID:           rep.ID.String(),
		Status:       status,
		SourceFormat: rep.Request.Source.Format,
		SourcePath:   rep.Request.Source.Path,
		TargetFormat: rep.Request.Target.Format,
		TargetPath:   rep.Request.Target.Path,
		Bundles:      names,
		Missing:      rep.Missing,
		Started:      rep.Started,
		DurationMS:   rep.Duration.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	// sink failures never change the outcome of the transform
	for _, s := range r.sinks {
		if perr := s.Push(ev); perr != nil {
			log.Error("pipeline: sink push failed", "err", perr)
		}
	}
}

// Close releases every sink.
func (r *Runner) Close() error {
	var err error
	for _, s := range r.sinks {
		err = multierr.Append(err, s.Close())
	}
	r.sinks = nil
	return err
}

// IsNotFound reports whether err comes from an unknown format or bundle.
func IsNotFound(err error) bool {
	return errors.Is(err, format.ErrUnknownFormat) || errors.Is(err, dictionary.ErrUnknownBundle)
}
