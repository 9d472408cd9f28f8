package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"formattransformer/internal/dictionary"
	"formattransformer/internal/jobspec"
	"formattransformer/internal/pipeline"
)

type runOptions struct {
	job     string
	bundles string
	from    string
	in      string
	to      string
	out     string
	codec   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one transformation from a job file or flags",
		Example: "  formatx run --job job.yml\n" +
			"  formatx run --bundles data_bundle_names --from cif --in in.cif --to nexus --out out.nx",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, req, err := o.build(root)
			if err != nil {
				return err
			}
			defer r.Close()

			rep, err := r.Transform(cmd.Context(), req)
			if err != nil {
				return err
			}
			printReport(cmd, rep)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.job, "job", "", "job file (YAML)")
	f.StringVar(&o.bundles, "bundles", "", "bundle-name file")
	f.StringVar(&o.from, "from", "", "source format")
	f.StringVar(&o.in, "in", "", "source file")
	f.StringVar(&o.to, "to", "", "target format")
	f.StringVar(&o.out, "out", "", "target file")
	f.StringVar(&o.codec, "codec", "", "nexus codec (xml|hdf5)")
	cmd.MarkFlagsMutuallyExclusive("job", "bundles")
	cmd.MarkFlagsMutuallyExclusive("job", "from")
	return cmd
}

func (o *runOptions) build(root *rootOptions) (*pipeline.Runner, jobspec.Request, error) {
	if o.job != "" {
		return pipeline.Compile(o.job, root.settings.Dictionary)
	}
	req := jobspec.Request{
		BundleFile: o.bundles,
		Source:     jobspec.Endpoint{Format: o.from, Path: o.in},
		Target:     jobspec.Endpoint{Format: o.to, Path: o.out},
	}
	if o.codec != "" {
		req.Target.Options = map[string]string{"codec": o.codec}
	}
	if err := req.Validate(); err != nil {
		return nil, req, fmt.Errorf("%w (or pass --job)", err)
	}
	dict, err := dictionary.Load(root.settings.Dictionary)
	if err != nil {
		return nil, req, err
	}
	return pipeline.NewRunner(dict), req, nil
}

func printReport(cmd *cobra.Command, rep pipeline.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "id:       %s\n", rep.ID)
	fmt.Fprintf(w, "source:   %s\n", rep.Request.Source)
	fmt.Fprintf(w, "target:   %s\n", rep.Request.Target)
	fmt.Fprintf(w, "written:  %d\n", len(rep.Written))
	if len(rep.Missing) > 0 {
		fmt.Fprintf(w, "missing:  %s\n", strings.Join(rep.Missing, ", "))
	}
	fmt.Fprintf(w, "duration: %s\n", rep.Duration)
}
