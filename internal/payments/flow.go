package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrimhub/internal/checkout"
	"scrimhub/internal/common/events"
	"scrimhub/internal/common/middleware"
)

var timeNow = time.Now

// Callbacks is the callback form of an Outcome. Exactly one is invoked.
type Callbacks struct {
	OnSuccess func(status *PaymentStatus)
	OnFailure func(err error)
	OnCancel  func()
}

// Flow runs a payment from initiation to a terminal outcome.
type Flow struct {
	initiator *Initiator
	checkout  Checkout
	poller    *Poller
	store     SessionStore
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewFlow wires a flow. publisher may be nil.
func NewFlow(initiator *Initiator, co Checkout, poller *Poller, store SessionStore, publisher events.EventPublisher, logger *slog.Logger) *Flow {
	return &Flow{
		initiator: initiator,
		checkout:  co,
		poller:    poller,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Run initiates a payment, opens the checkout and, unless the user cancels,
// polls the backend until the payment is terminal.
func (f *Flow) Run(ctx context.Context, req PaymentRequest) Outcome {
	ctx = middleware.WithCorrelationID(ctx, middleware.GetCorrelationID(ctx))

	session, err := f.initiator.Initiate(ctx, req)
	if err != nil {
		f.logger.Warn("payment initiation failed", "error", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	f.publish(ctx, events.EventPaymentInitiated, session.MerchantOrderID, events.PaymentInitiatedData{
		MerchantOrderID: session.MerchantOrderID,
		PhonePeOrderID:  session.PhonePeOrderID,
		PaymentType:     string(session.PaymentType),
		AmountMinor:     session.Amount.AmountMinor,
		Currency:        string(session.Amount.Currency),
	})

	result, err := f.checkout.Open(ctx, session.CheckoutURL)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled, Session: session, Err: ctx.Err()}
		}
		f.logger.Warn("checkout failed", "merchant_order_id", session.MerchantOrderID, "error", err)
		return Outcome{Kind: OutcomeFailed, Session: session, Err: fmt.Errorf("checkout: %w", err)}
	}

	if result == checkout.ResultCancelled {
		f.logger.Info("payment cancelled by user", "merchant_order_id", session.MerchantOrderID)
		f.clear(ctx, session.MerchantOrderID)
		f.publishResolved(ctx, events.EventPaymentCancelled, session.MerchantOrderID, nil, "user cancelled")
		return Outcome{Kind: OutcomeCancelled, Session: session}
	}

	return f.settle(ctx, session)
}

// Resume polls the order recorded by the last interrupted flow.
func (f *Flow) Resume(ctx context.Context) Outcome {
	ctx = middleware.WithCorrelationID(ctx, middleware.GetCorrelationID(ctx))

	id, err := f.store.LastOrderID(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Outcome{Kind: OutcomeFailed, Err: ErrNoActiveSession}
		}
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("read last order: %w", err)}
	}

	session, err := f.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("read session %s: %w", id, err)}
		}
		session = &PaymentSession{MerchantOrderID: id}
	}

	f.logger.Info("resuming payment", "merchant_order_id", id)
	return f.settle(ctx, session)
}

// CancelStored records a user cancel for the order of the last interrupted
// flow: the session is cleared and a cancelled event published. The order is
// not polled.
func (f *Flow) CancelStored(ctx context.Context) Outcome {
	ctx = middleware.WithCorrelationID(ctx, middleware.GetCorrelationID(ctx))

	id, err := f.store.LastOrderID(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Outcome{Kind: OutcomeFailed, Err: ErrNoActiveSession}
		}
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("read last order: %w", err)}
	}

	session, err := f.store.Get(ctx, id)
	if err != nil {
		session = &PaymentSession{MerchantOrderID: id}
	}

	f.logger.Info("payment cancelled by user", "merchant_order_id", id)
	f.clear(ctx, id)
	f.publishResolved(ctx, events.EventPaymentCancelled, id, nil, "user cancelled")
	return Outcome{Kind: OutcomeCancelled, Session: session}
}

// InitiatePayment runs the flow and reports the outcome through cb.
func (f *Flow) InitiatePayment(ctx context.Context, req PaymentRequest, cb Callbacks) {
	Dispatch(f.Run(ctx, req), cb)
}

// Dispatch invokes the callback matching o. Nil callbacks are skipped.
func Dispatch(o Outcome, cb Callbacks) {
	switch o.Kind {
	case OutcomeSucceeded:
		if cb.OnSuccess != nil {
			cb.OnSuccess(o.Status)
		}
	case OutcomeCancelled:
		if cb.OnCancel != nil {
			cb.OnCancel()
		}
	default:
		if cb.OnFailure != nil {
			err := o.Err
			if err == nil {
				err = ErrPaymentFailed
			}
			cb.OnFailure(err)
		}
	}
}

// settle polls until the order is terminal. The stored session is kept when
// polling stops early so the flow can be resumed.
func (f *Flow) settle(ctx context.Context, session *PaymentSession) Outcome {
	status, err := f.poller.Poll(ctx, session.MerchantOrderID)
	switch {
	case err == nil:
		f.clear(ctx, session.MerchantOrderID)
		f.publishResolved(ctx, events.EventPaymentCompleted, session.MerchantOrderID, status, "")
		return Outcome{Kind: OutcomeSucceeded, Session: session, Status: status}
	case errors.Is(err, ErrPaymentFailed):
		f.clear(ctx, session.MerchantOrderID)
		f.publishResolved(ctx, events.EventPaymentFailed, session.MerchantOrderID, status, err.Error())
		return Outcome{Kind: OutcomeFailed, Session: session, Status: status, Err: err}
	case ctx.Err() != nil:
		return Outcome{Kind: OutcomeCancelled, Session: session, Err: ctx.Err()}
	default:
		f.logger.Warn("payment status unresolved", "merchant_order_id", session.MerchantOrderID, "error", err)
		return Outcome{Kind: OutcomeFailed, Session: session, Err: err}
	}
}

func (f *Flow) clear(ctx context.Context, merchantOrderID string) {
	if err := f.store.Clear(context.WithoutCancel(ctx), merchantOrderID); err != nil {
		f.logger.Error("failed to clear payment session", "merchant_order_id", merchantOrderID, "error", err)
	}
}

func (f *Flow) publishResolved(ctx context.Context, eventType, merchantOrderID string, status *PaymentStatus, reason string) {
	data := events.PaymentResolvedData{
		MerchantOrderID: merchantOrderID,
		Reason:          reason,
		ResolvedAt:      timeNow().UTC(),
	}
	switch eventType {
	case events.EventPaymentCompleted:
		data.Status = string(StatusCompleted)
	case events.EventPaymentFailed:
		data.Status = string(StatusFailed)
	default:
		data.Status = "cancelled"
	}
	if status != nil {
		data.TournamentID = status.TournamentID
		data.RegistrationID = status.RegistrationID
	}
	f.publish(ctx, eventType, merchantOrderID, data)
}

func (f *Flow) publish(ctx context.Context, eventType, merchantOrderID string, data any) {
	publishEvent(ctx, f.publisher, f.logger, eventType, merchantOrderID, data)
}

func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType, merchantOrderID string, data any) {
	if publisher == nil {
		return
	}
	evt, err := events.NewEvent(eventType, events.AggregatePaymentSession, merchantOrderID, data)
	if err != nil {
		logger.Error("failed to build event", "type", eventType, "error", err)
		return
	}
	evt.WithCorrelation(middleware.GetCorrelationID(ctx))
	if err := publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logger.Error("failed to publish event", "type", eventType, "merchant_order_id", merchantOrderID, "error", err)
	}
}
