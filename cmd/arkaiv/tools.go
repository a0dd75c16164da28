package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage the tool catalog",
	}
	cmd.AddCommand(newToolsImportCmd(a))
	return cmd
}

func newToolsImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert scraped tool records from a JSON, JSON Lines or YAML file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var r io.Reader
			if name == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Importer().ImportReader(cmd.Context(), name, r)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d tools, rejected %d\n", res.Imported, len(res.Rejected))
			for _, rej := range res.Rejected {
				fmt.Fprintf(out, "  record %d (%s): %v\n", rej.Index, rej.URL, rej.Err)
			}
			return err
		},
	}
}
