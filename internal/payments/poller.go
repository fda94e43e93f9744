package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 150
)

// StatusChecker queries the status of an order.
type StatusChecker interface {
	Status(ctx context.Context, merchantOrderID string) (*PaymentStatus, error)
}

// PollerConfig configures status polling.
type PollerConfig struct {
	Interval    time.Duration `envconfig:"SCRIM_POLL_INTERVAL" default:"2s"`
	MaxAttempts int           `envconfig:"SCRIM_POLL_MAX_ATTEMPTS" default:"150"`
}

// Poller queries an order's status at a fixed interval until it is terminal.
type Poller struct {
	checker     StatusChecker
	interval    time.Duration
	maxAttempts int
	wait        func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

func NewPoller(checker StatusChecker, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollMaxAttempts
	}
	return &Poller{
		checker:     checker,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		wait:        sleep,
		logger:      logger,
	}
}

// Poll returns the completed status, or the failed status with
// ErrPaymentFailed. Errors from the backend count as pending, except
// credential errors which end polling. When the attempts run out it returns
// a *PollTimeoutError; when ctx ends it returns ctx.Err().
func (p *Poller) Poll(ctx context.Context, merchantOrderID string) (*PaymentStatus, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, err := p.checker.Status(ctx, merchantOrderID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if IsCredentialError(err) {
				return nil, fmt.Errorf("check payment status: %w", err)
			}
			lastErr = err
			p.logger.Warn("payment status check failed, retrying",
				"merchant_order_id", merchantOrderID,
				"attempt", attempt,
				"error", err,
			)
		case status.Status == StatusCompleted:
			p.logger.Info("payment completed", "merchant_order_id", merchantOrderID, "attempts", attempt)
			return status, nil
		case status.Status == StatusFailed:
			p.logger.Info("payment failed", "merchant_order_id", merchantOrderID, "attempts", attempt)
			if status.Message != "" {
				return status, fmt.Errorf("%w: %s", ErrPaymentFailed, status.Message)
			}
			return status, ErrPaymentFailed
		default:
			lastErr = nil
			p.logger.Debug("payment pending", "merchant_order_id", merchantOrderID, "attempt", attempt, "status", status.Status)
		}

		if attempt >= p.maxAttempts {
			return nil, &PollTimeoutError{
				MerchantOrderID: merchantOrderID,
				Attempts:        attempt,
				LastErr:         lastErr,
			}
		}
		if err := p.wait(ctx, p.interval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
