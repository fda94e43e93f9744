package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"scrimhub/internal/payments"
)

func newWatchCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically resolve pending payments and publish their outcome",
		Long: `watch checks every pending payment once per run of SCRIM_WATCH_SCHEDULE
(a cron spec, "@every 1m" by default). Resolved payments are cleared from the
local session store and published as payment events when NATS is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := a.flowDeps(ctx)
			if err != nil {
				return err
			}
			reconciler := payments.NewReconciler(deps.client, deps.store, deps.publisher, a.logger)

			if once {
				report, err := reconciler.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked %d: %d completed, %d failed, %d pending, %d errors\n",
					report.Checked, report.Completed, report.Failed, report.Pending, report.Errors)
				return nil
			}
			return runSchedule(ctx, a.cfg.WatchSchedule, reconciler, a)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

func runSchedule(ctx context.Context, spec string, reconciler *payments.Reconciler, a *app) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	a.logger.Info("watching pending payments", "schedule", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("watch stopped")
	return nil
}
