package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/loykin/schoolsys/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply pending changesets, then serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		// never listen on a schema that is not up to date
		if _, err := a.runner.Run(ctx); err != nil {
			return err
		}

		srv := server.New(server.Options{
			Addr:            a.doc.Server.Addr,
			ShutdownTimeout: a.doc.Server.ShutdownTimeout,
			Pending: func(ctx context.Context) (int, error) {
				pending, err := a.runner.Pending(ctx)
				return len(pending), err
			},
			Logger:  a.logger,
			Metrics: a.metrics,
		})
		return srv.ListenAndServe(ctx)
	},
}
