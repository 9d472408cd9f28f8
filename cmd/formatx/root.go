package main

import (
	"github.com/spf13/cobra"

	"formattransformer/internal/config"
	"formattransformer/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool

	settings config.Settings
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "formatx",
		Short:         "Transform data bundles between CIF and NeXus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "settings file (YAML); FORMATX__ env vars override it")
	f.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error")
	f.BoolVar(&opts.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		newRunCmd(opts),
		newBundlesCmd(),
		newFormatsCmd(),
		newServeCmd(opts),
	)
	return root
}

// load reads settings, applies flag overrides and configures logging.
func (o *rootOptions) load(cmd *cobra.Command) error {
	s, err := config.LoadSettings(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		s.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		s.Log.JSON = o.logJSON
	}
	o.settings = s
	logging.Configure(logging.Options{
		Level:     s.Log.Level,
		JSON:      s.Log.JSON,
		AddSource: s.Log.Source,
		Output:    cmd.ErrOrStderr(),
	})
	return nil
}
