// Package payments implements the checkout flow for tournament plans, scrim
// plans and registration entry fees: session initiation against the payments
// backend, hand-off to the hosted checkout, and status reconciliation.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrimhub/internal/common/money"
)

// PaymentType identifies what a payment is for.
type PaymentType string

const (
	PaymentTypeTournamentPlan PaymentType = "tournament_plan"
	PaymentTypeScrimPlan      PaymentType = "scrim_plan"
	PaymentTypeEntryFee       PaymentType = "entry_fee"
)

// IsPlan reports whether the payment buys a hosting plan for a tournament or scrim.
func (t PaymentType) IsPlan() bool {
	return t == PaymentTypeTournamentPlan || t == PaymentTypeScrimPlan
}

// PaymentRequest is the caller's intent to pay.
// Plan payments carry TournamentID, entry fees carry RegistrationID, never both.
type PaymentRequest struct {
	PaymentType    PaymentType `json:"payment_type" validate:"required,oneof=tournament_plan scrim_plan entry_fee"`
	Amount         money.Money `json:"amount"`
	TournamentID   int64       `json:"tournament_id,omitempty" validate:"required_unless=PaymentType entry_fee"`
	RegistrationID int64       `json:"registration_id,omitempty" validate:"required_if=PaymentType entry_fee"`
	RedirectURL    string      `json:"redirect_url,omitempty" validate:"omitempty,url"`
}

// PaymentSession is the server-issued checkout session, cached client side
// so a session survives a restart while the user is on the hosted page.
type PaymentSession struct {
	MerchantOrderID string      `json:"merchant_order_id"`
	PhonePeOrderID  string      `json:"phonepe_order_id"`
	CheckoutURL     string      `json:"checkout_url"`
	PaymentType     PaymentType `json:"payment_type"`
	Amount          money.Money `json:"amount"`
	CreatedAt       time.Time   `json:"created_at"`
}

// StatusValue is the backend-reported state of a payment.
type StatusValue string

const (
	StatusPending   StatusValue = "pending"
	StatusCompleted StatusValue = "completed"
	StatusFailed    StatusValue = "failed"
)

// IsTerminal returns true once no further transition is expected.
func (s StatusValue) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PaymentStatus is the body returned by the status endpoint.
type PaymentStatus struct {
	Success         bool        `json:"success"`
	MerchantOrderID string      `json:"merchant_order_id,omitempty"`
	Status          StatusValue `json:"status"`
	TournamentID    int64       `json:"tournament_id,omitempty"`
	RegistrationID  int64       `json:"registration_id,omitempty"`
	Amount          float64     `json:"amount,omitempty"`
	Message         string      `json:"message,omitempty"`
	Error           string      `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// PaymentRecord is one row of the payment history and pending lists.
type PaymentRecord struct {
	MerchantOrderID string      `json:"merchant_order_id"`
	PaymentType     PaymentType `json:"payment_type"`
	Amount          float64     `json:"amount"`
	Status          StatusValue `json:"status"`
	TournamentID    int64       `json:"tournament_id,omitempty"`
	RegistrationID  int64       `json:"registration_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SessionStore is the durable client-side storage for payment sessions. The
// most recently saved merchant order ID is remembered so an interrupted flow
// can be resumed.
type SessionStore interface {
	Save(ctx context.Context, session *PaymentSession) error
	LastOrderID(ctx context.Context) (string, error)
	Get(ctx context.Context, merchantOrderID string) (*PaymentSession, error)
	Clear(ctx context.Context, merchantOrderID string) error
}

var (
	// ErrSessionNotFound is returned by SessionStore implementations.
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrNoActiveSession means there is nothing to resume.
	ErrNoActiveSession = errors.New("no payment session to resume")
	// ErrPaymentFailed is returned when the backend reports a failed payment.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrPollTimeout matches *PollTimeoutError.
	ErrPollTimeout = errors.New("payment status polling timed out")
	// ErrMalformedResponse is returned for 2xx bodies missing required fields.
	ErrMalformedResponse = errors.New("malformed payments response")
)

// APIError is a non-2xx or success=false answer from the payments backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payments api error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("payments api error: status=%d: %s", e.StatusCode, e.Message)
}

// PollTimeoutError is returned when polling gives up with the payment still pending.
type PollTimeoutError struct {
	MerchantOrderID string
	Attempts        int
	LastErr         error
}

func (e *PollTimeoutError) Error() string {
	msg := fmt.Sprintf("payment %s still pending after %d status checks", e.MerchantOrderID, e.Attempts)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *PollTimeoutError) Is(target error) bool {
	return target == ErrPollTimeout
}

func (e *PollTimeoutError) Unwrap() error {
	return e.LastErr
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "invalid payment request: " + strings.Join(parts, "; ")
}

// OutcomeKind tags how a checkout ended.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the single result of a checkout flow.
type Outcome struct {
	Kind    OutcomeKind
	Session *PaymentSession
	Status  *PaymentStatus
	Err     error
}

// Message is the user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSucceeded:
		return "Payment successful"
	case OutcomeCancelled:
		return "Payment cancelled"
	default:
		reason := ""
		switch {
		case o.Status != nil && o.Status.Message != "":
			reason = o.Status.Message
		case o.Err != nil && o.Err != ErrPaymentFailed:
			reason = o.Err.Error()
		}
		if reason == "" {
			return "Payment failed"
		}
		return "Payment failed: " + reason
	}
}
