package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/tapcoin/internal/bootstrap"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/migration"
	"github.com/smallbiznis/tapcoin/internal/observability"
	"github.com/smallbiznis/tapcoin/internal/scheduler"
	"github.com/smallbiznis/tapcoin/internal/server"
	"github.com/smallbiznis/tapcoin/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var withSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, optionally with the reconcile sweep in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				bootstrap.Infrastructure(),
				bootstrap.Domain(),
				server.Module,
			}
			if withSweep {
				opts = append(opts,
					scheduler.Module,
					fx.Decorate(func(cfg scheduler.Config) scheduler.Config {
						cfg.Enabled = true
						return cfg
					}),
				)
			}
			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withSweep, "with-sweep", false, "run the pending invoice sweep alongside the API")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), time.Minute, nil,
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
			)
		},
	}
}

func sweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile pending invoices once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			sweep := func(ctx context.Context) error {
				if err := sched.RunOnce(ctx); err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				return nil
			}
			return runOnce(cmd.Context(), timeout, sweep,
				bootstrap.Infrastructure(),
				bootstrap.Domain(),
				fx.Provide(scheduler.ProvideConfig, scheduler.New),
				fx.Populate(&sched),
			)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "upper bound for the sweep")

	return cmd
}

// runOnce starts the graph, runs fn while it is alive and stops it again.
func runOnce(parent context.Context, timeout time.Duration, fn func(context.Context) error, opts ...fx.Option) error {
	app := fx.New(append(opts, fx.NopLogger)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(startCtx)
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
