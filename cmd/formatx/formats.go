package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"formattransformer/format"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the registered format tags",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, f := range format.Formats() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
		},
	}
}
