package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"up"},
	Short:   "Apply every pending changeset, in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := a.runner.Run(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "applied: %d, already applied: %d", len(report.Applied), len(report.Skipped))
		if len(report.Concurrent) > 0 {
			_, _ = fmt.Fprintf(out, ", applied concurrently: %d", len(report.Concurrent))
		}
		_, _ = fmt.Fprintln(out)
		for _, id := range report.Applied {
			_, _ = fmt.Fprintf(out, "  + %s\n", id)
		}
		return nil
	},
}
