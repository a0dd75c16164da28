package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cfg.WriteYAML(cmd.OutOrStdout())
		},
	})
	return cmd
}
