package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arkaiv/arkaiv/pkg/model"
)

func newDigestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compile or prune daily digests",
	}
	cmd.AddCommand(newDigestGenerateCmd(a), newDigestPruneCmd(a))
	return cmd
}

func newDigestGenerateCmd(a *app) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile today's digest now, replacing any digest already stored for today",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			d, err := rt.Generate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if markdown {
				fmt.Fprint(out, d.FormattedDocument)
				return nil
			}
			fmt.Fprintf(out, "Digest for %s: %d tools, %d new\n",
				d.Date.In(rt.Location()).Format(model.DateLayout), d.TotalTools, d.NewTools)
			fmt.Fprintln(out, d.Summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the rendered markdown document")
	return cmd
}

func newDigestPruneCmd(a *app) *cobra.Command {
	var keepDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete digests older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep-days") {
				keepDays = a.cfg.Digest.KeepDays
			}
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.Prune(cmd.Context(), keepDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d digests older than %d days\n", n, keepDays)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "days of digests to keep (default digest.keep_days)")
	return cmd
}
