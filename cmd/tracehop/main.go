// tracehop runs either end of the trace propagation demo.
//
//	tracehop server   # listens on 127.0.0.1:3000
//	tracehop client   # calls http://localhost:3000 once
//
// Everything besides the role is configured through the environment; see
// app.Config and tracehop.Config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kzs0/tracehop"
	"github.com/kzs0/tracehop/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tracehop",
		Short:        "Test tracing client/server",
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "server",
			Short: "Start the tracing server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, func(ctx context.Context, rt *tracehop.Runtime, cfg app.Config) error {
					return app.Serve(ctx, rt, cfg)
				})
			},
		},
		&cobra.Command{
			Use:   "client",
			Short: "Call the server with a client",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, func(ctx context.Context, rt *tracehop.Runtime, cfg app.Config) error {
					return app.Call(ctx, rt, cfg, cmd.OutOrStdout())
				})
			},
		},
	)
	return root
}

// withRuntime loads the configuration, builds a Runtime for fn and flushes
// its spans afterwards.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *tracehop.Runtime, app.Config) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Tracehop.LogOutput == nil {
		cfg.Tracehop.LogOutput = cmd.ErrOrStderr()
	}

	rt, err := tracehop.New(cfg.Tracehop)
	if err != nil {
		return err
	}

	runErr := fn(cmd.Context(), rt, cfg)
	if err := rt.Shutdown(context.WithoutCancel(cmd.Context())); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush spans: %w", err)
	}
	return runErr
}
