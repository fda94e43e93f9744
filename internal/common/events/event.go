package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation sets the correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EventPublisher publishes events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Aggregate types
const (
	AggregatePaymentSession = "payment_session"
)

// Payment lifecycle event types
const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
)

// PaymentInitiatedData is the data for payment.initiated events
type PaymentInitiatedData struct {
	MerchantOrderID string `json:"merchant_order_id"`
	PhonePeOrderID  string `json:"phonepe_order_id"`
	PaymentType     string `json:"payment_type"`
	AmountMinor     int64  `json:"amount_minor"`
	Currency        string `json:"currency"`
}

// PaymentResolvedData is the data for completed, failed and cancelled events
type PaymentResolvedData struct {
	MerchantOrderID string    `json:"merchant_order_id"`
	Status          string    `json:"status"`
	TournamentID    int64     `json:"tournament_id,omitempty"`
	RegistrationID  int64     `json:"registration_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at"`
}
