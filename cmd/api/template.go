package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fleetplan/internal/buildinfo"
	"fleetplan/internal/csvtable"
	"fleetplan/internal/schema"
)

func newTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "template <vehicles|shipments>",
		Short:     "Write the header-only CSV template for a dataset",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"vehicles", "shipments"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := schema.ParseKind(args[0])
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			_, err = w.Write(csvtable.Template(kind.Columns()))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Info()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "fleetplan %s (commit %s, built %s)\n", info["version"], info["commit"], info["builtAt"])
			return err
		},
	}
}
