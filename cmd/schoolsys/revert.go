package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert [id]",
	Short: "Revert the most recently applied changeset",
	Long: "Runs the reverse operation of the most recently applied changeset and removes its ledger entry.\n" +
		"When id is given it must name that changeset. Only one changeset is reverted per invocation.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		reverted, err := a.runner.Revert(ctx, id)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reverted: %s\n", reverted)
		return nil
	},
}
