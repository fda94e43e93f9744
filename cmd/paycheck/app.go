package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scrimhub/internal/auth"
	"scrimhub/internal/common/events"
	"scrimhub/internal/common/nats"
	"scrimhub/internal/payments"
	"scrimhub/internal/session"
)

// app carries what every command needs. Resources are opened on demand and
// released by close.
type app struct {
	cfg    Config
	logger *slog.Logger

	nc      *nats.Client
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	store, err := session.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			a.logger.Error("failed to close session store", "error", err)
		}
	})
	return store, nil
}

// tokens prefers a configured token over the one saved by `token set`.
func (a *app) tokens(store session.Store) auth.TokenSource {
	var chain auth.Chain
	if a.cfg.AccessToken != "" {
		chain = append(chain, auth.StaticToken(a.cfg.AccessToken))
	}
	return append(chain, auth.NewStoreTokenSource(store))
}

func (a *app) client(store session.Store) (*payments.Client, error) {
	if a.cfg.API.BaseURL == "" {
		return nil, errors.New("SCRIM_API_BASE_URL is required")
	}
	return payments.NewClient(a.cfg.API, a.tokens(store), a.logger), nil
}

// publisher returns nil when NATS is not configured.
func (a *app) publisher(ctx context.Context) (events.EventPublisher, error) {
	if !a.cfg.NATS.Enabled() {
		return nil, nil
	}
	nc, err := a.natsClient(ctx)
	if err != nil {
		return nil, err
	}
	return nats.NewPublisher(nc, a.logger), nil
}

func (a *app) natsClient(ctx context.Context) (*nats.Client, error) {
	if a.nc != nil {
		return a.nc, nil
	}
	if !a.cfg.NATS.Enabled() {
		return nil, errors.New("NATS_URL is required")
	}
	nc, err := nats.New(ctx, a.cfg.NATS, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	a.closers = append(a.closers, nc.Close)
	if _, err := nc.EnsurePaymentStream(ctx, a.cfg.NATS.Stream); err != nil {
		return nil, fmt.Errorf("ensure payment stream: %w", err)
	}
	a.nc = nc
	return nc, nil
}

// health reports whether the session store and, when connected, NATS are
// reachable.
func (a *app) health(store session.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		if a.nc != nil {
			return a.nc.HealthCheck()
		}
		return nil
	}
}

type flowDeps struct {
	store     session.Store
	client    *payments.Client
	publisher events.EventPublisher
	poller    *payments.Poller
}

func (a *app) flowDeps(ctx context.Context) (*flowDeps, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	client, err := a.client(store)
	if err != nil {
		return nil, err
	}
	pub, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}
	return &flowDeps{
		store:     store,
		client:    client,
		publisher: pub,
		poller:    payments.NewPoller(client, a.cfg.Poll, a.logger),
	}, nil
}
