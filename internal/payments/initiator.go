package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"scrimhub/internal/checkout"
)

// Backend is the subset of the payments backend the flow needs.
type Backend interface {
	Initiate(ctx context.Context, req *PaymentRequest) (*InitiateResponse, error)
	Status(ctx context.Context, merchantOrderID string) (*PaymentStatus, error)
}

// Checkout opens the hosted checkout for a session.
type Checkout interface {
	Available() bool
	Open(ctx context.Context, tokenURL string) (checkout.Result, error)
}

// Initiator creates payment sessions and records them for resumption.
type Initiator struct {
	backend     Backend
	store       SessionStore
	checkout    Checkout
	callbackURL string
	logger      *slog.Logger
	now         func() time.Time
}

// NewInitiator creates an Initiator. callbackBase is the public base URL the
// hosted checkout redirects back to.
func NewInitiator(backend Backend, store SessionStore, co Checkout, callbackBase string, logger *slog.Logger) *Initiator {
	return &Initiator{
		backend:     backend,
		store:       store,
		checkout:    co,
		callbackURL: callbackBase,
		logger:      logger,
		now:         time.Now,
	}
}

// CallbackURL joins base with the checkout callback path.
func CallbackURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse callback base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("callback base url %q is not absolute", base)
	}
	return u.JoinPath(checkout.CallbackPath).String(), nil
}

// Initiate validates req, creates a session on the backend and persists its
// merchant order ID before returning. Nothing is stored on failure.
func (i *Initiator) Initiate(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if i.checkout == nil || !i.checkout.Available() {
		return nil, checkout.ErrWidgetUnavailable
	}

	if req.RedirectURL == "" {
		redirect, err := CallbackURL(i.callbackURL)
		if err != nil {
			return nil, err
		}
		req.RedirectURL = redirect
	}

	i.logger.Info("initiating payment",
		"payment_type", req.PaymentType,
		"amount", req.Amount.String(),
		"tournament_id", req.TournamentID,
		"registration_id", req.RegistrationID,
	)

	resp, err := i.backend.Initiate(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	session := &PaymentSession{
		MerchantOrderID: resp.MerchantOrderID,
		PhonePeOrderID:  resp.PhonePeOrderID,
		CheckoutURL:     resp.RedirectURL,
		PaymentType:     req.PaymentType,
		Amount:          req.Amount,
		CreatedAt:       i.now().UTC(),
	}
	if err := i.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save payment session %s: %w", session.MerchantOrderID, err)
	}
	return session, nil
}

// IsPrecondition reports whether err was raised before any network call:
// an invalid request, a missing widget or a missing credential.
func IsPrecondition(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, checkout.ErrWidgetUnavailable) ||
		IsCredentialError(err)
}
