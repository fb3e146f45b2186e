package main

import (
	"encoding/json"
	"fmt"

	"github.com/loykin/schoolsys/cmd/schoolsys/config"
	"github.com/loykin/schoolsys/internal/util"
	"github.com/loykin/schoolsys/pkg/status"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	statusHistory      bool
	statusHistoryAll   bool
	statusHistoryLimit int
	statusFormat       string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending changesets, and optionally run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := util.TrimWithDefault(util.TrimAndLower(statusFormat), "text")
		switch format {
		case "text", "json", "yaml":
		default:
			return &config.Error{Err: fmt.Errorf("invalid --format %q (valid: text, json, yaml)", statusFormat)}
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		info, err := status.FromRunner(ctx, a.runner)
		if err != nil {
			return err
		}
		if !statusHistory {
			info.History = nil
		}
		return writeStatus(cmd, info, format)
	},
}

func writeStatus(cmd *cobra.Command, info status.Info, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	default:
		if statusHistory {
			_, err := fmt.Fprint(out, info.FormatHumanWithLimit(true, statusHistoryLimit, statusHistoryAll))
			return err
		}
		_, err := fmt.Fprint(out, info.FormatHuman(false))
		return err
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "show migration run history as well")
	statusCmd.Flags().BoolVar(&statusHistoryAll, "history-all", false, "when used with --history, show all history entries (newest first)")
	statusCmd.Flags().IntVar(&statusHistoryLimit, "history-limit", 10, "when used with --history, show up to N latest entries (default 10)")
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text, json or yaml")
}
