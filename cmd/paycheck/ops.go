package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"scrimhub/internal/auth"
	"scrimhub/internal/checkout"
	"scrimhub/internal/common/database"
	"scrimhub/internal/common/events"
	"scrimhub/internal/common/middleware"
	"scrimhub/internal/payments"
)

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print payment lifecycle events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, err := a.natsClient(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = nc.Tail(cmd.Context(), a.cfg.NATS.Stream, func(_ context.Context, evt *events.Event) error {
				return writeJSON(out, evt)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres session store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			return database.Migrate(a.cfg.Store.Database.URL, a.logger)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkout callback and resume payments that return to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := a.flowDeps(ctx)
			if err != nil {
				return err
			}
			flow := payments.NewFlow(nil, nil, deps.poller, deps.store, deps.publisher, a.logger)
			orphans := newOrphanResolver(ctx, flow, a.logger)

			srv, err := startCallbackServer(ctx, a.cfg.CallbackAddr, checkout.NewCallbackHandler(nil, orphans.handle, a.logger), a.health(deps.store), a.logger)
			if err != nil {
				return err
			}

			<-ctx.Done()
			srv.shutdown()
			orphans.wait()
			return nil
		},
	}
}

type storedFlow interface {
	Resume(ctx context.Context) payments.Outcome
	CancelStored(ctx context.Context) payments.Outcome
}

// orphanResolver settles the stored session when a checkout callback arrives
// with no checkout open. One resolution runs at a time; callbacks arriving
// meanwhile are dropped.
type orphanResolver struct {
	ctx    context.Context
	flow   storedFlow
	logger *slog.Logger

	mu   sync.Mutex
	busy bool
	wg   sync.WaitGroup
}

func newOrphanResolver(ctx context.Context, flow storedFlow, logger *slog.Logger) *orphanResolver {
	return &orphanResolver{ctx: ctx, flow: flow, logger: logger}
}

func (o *orphanResolver) handle(sig checkout.Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		o.logger.Debug("stored payment already being resolved", "signal", sig)
		return
	}
	o.busy = true
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx := middleware.WithCorrelationID(o.ctx, "")
		var out payments.Outcome
		if sig == checkout.SignalUserCancel {
			out = o.flow.CancelStored(ctx)
		} else {
			out = o.flow.Resume(ctx)
		}
		o.logger.Info("stored payment resolved", "signal", sig, "outcome", out.Kind, "message", out.Message())
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()
}

func (o *orphanResolver) wait() {
	o.wg.Wait()
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored access token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <token>",
		Short: "Store the access token used for payment requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.Check(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.SetValue(cmd.Context(), auth.AccessTokenKey, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "access token saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return store.SetValue(cmd.Context(), auth.AccessTokenKey, "")
		},
	})

	return cmd
}
