package main

import (
	"fmt"
	"time"

	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/httpc"
	"github.com/spf13/cobra"
)

var (
	healthURL      string
	healthTimeout  time.Duration
	healthInsecure bool
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Query a running server's /healthz; exits non-zero unless it is up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := (&httpc.Httpc{Timeout: healthTimeout, Insecure: healthInsecure}).New()
		h, err := httpc.CheckHealth(cmd.Context(), client, healthURL)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "status: %s (http %d), pending: %d\n", h.Status, h.StatusCode, h.Pending)
		if !h.OK() {
			return fmt.Errorf("server not healthy: %s", h.Status)
		}
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthURL, "url", constants.DefaultHealthcheckURL, "health endpoint to query")
	healthcheckCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "request timeout")
	healthcheckCmd.Flags().BoolVar(&healthInsecure, "insecure", false, "skip TLS certificate verification")
}
