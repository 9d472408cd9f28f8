package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"formattransformer/internal/bundle"
)

func newBundlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Manage bundle-name files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "write <file> [name]...",
		Short: "Write bundle names, one per line, replacing the file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return bundle.WriteNames(afero.NewOsFs(), args[0], args[1:])
		},
	})
	return cmd
}
