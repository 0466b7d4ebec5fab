package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/freightbill/pkg/config"
	"github.com/dmitrymomot/freightbill/pkg/httpserver"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/svc/billing"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "billingd",
		Short:         "Subscription and entitlement lifecycle engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if len(envFiles) == 0 {
				return nil
			}
			return config.LoadEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newSweepCmd(), newVersionCmd())
	return root
}

// bootstrap loads configuration and assembles the engine.
func bootstrap(ctx context.Context) (*billing.App, *slog.Logger, error) {
	var cfg billing.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}
	log := billing.NewLogger(cfg, os.Stderr)
	logger.SetAsDefault(log)

	app, err := billing.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app, log, nil
}

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the billing API and run scheduled sweeps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if migrate {
				if _, err := app.Migrate(ctx); err != nil {
					return err
				}
			}
			if _, err := app.Collector.Refresh(ctx); err != nil {
				log.WarnContext(ctx, "initial metrics refresh failed", logger.Error(err))
			}

			srv := httpserver.NewFromConfig(app.Config.HTTP, httpserver.WithLogger(log))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(ctx, app.Router()) })
			g.Go(func() error {
				if err := app.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})

			err = g.Wait()
			log.InfoContext(context.WithoutCancel(ctx), "billingd stopped", logger.Error(err))
			return err
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			v, err := app.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Subscriptions.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "billingd %s (%s)\n", Version, GitCommit)
		},
	}
}
