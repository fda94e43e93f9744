package payments

import (
	"context"
	"fmt"
	"log/slog"

	"scrimhub/internal/common/events"
)

// PendingSource lists orders that have not reached a terminal state.
type PendingSource interface {
	StatusChecker
	Pending(ctx context.Context) ([]PaymentRecord, error)
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int
	Completed int
	Failed    int
	Pending   int
	Errors    int
}

// Reconciler resolves payments left pending by flows that ended before
// polling finished. Each pending order is checked once per pass.
type Reconciler struct {
	source    PendingSource
	store     SessionStore
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewReconciler creates a reconciler. store and publisher may be nil.
func NewReconciler(source PendingSource, store SessionStore, publisher events.EventPublisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	records, err := r.source.Pending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending payments: %w", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		status, err := r.source.Status(ctx, rec.MerchantOrderID)
		if err != nil {
			report.Errors++
			r.logger.Warn("reconcile status check failed", "merchant_order_id", rec.MerchantOrderID, "error", err)
			if IsCredentialError(err) {
				return report, fmt.Errorf("check payment status: %w", err)
			}
			continue
		}

		data := events.PaymentResolvedData{
			MerchantOrderID: rec.MerchantOrderID,
			Status:          string(status.Status),
			TournamentID:    status.TournamentID,
			RegistrationID:  status.RegistrationID,
			Reason:          status.Message,
		}
		switch status.Status {
		case StatusCompleted:
			report.Completed++
			r.resolve(ctx, events.EventPaymentCompleted, data)
		case StatusFailed:
			report.Failed++
			r.resolve(ctx, events.EventPaymentFailed, data)
		default:
			report.Pending++
		}
	}

	r.logger.Info("reconciliation pass finished",
		"checked", report.Checked,
		"completed", report.Completed,
		"failed", report.Failed,
		"pending", report.Pending,
		"errors", report.Errors,
	)
	return report, nil
}

func (r *Reconciler) resolve(ctx context.Context, eventType string, data events.PaymentResolvedData) {
	if r.store != nil {
		if err := r.store.Clear(context.WithoutCancel(ctx), data.MerchantOrderID); err != nil {
			r.logger.Error("failed to clear payment session", "merchant_order_id", data.MerchantOrderID, "error", err)
		}
	}
	data.ResolvedAt = timeNow().UTC()
	publishEvent(ctx, r.publisher, r.logger, eventType, data.MerchantOrderID, data)
}
