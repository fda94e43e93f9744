package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrimhub/internal/common/money"
)

func TestPaymentRequest_Validate(t *testing.T) {
	rupees := money.New(50000, money.INR)

	tests := []struct {
		name   string
		req    PaymentRequest
		fields []string
	}{
		{"tournament plan", PaymentRequest{PaymentType: PaymentTypeTournamentPlan, Amount: rupees, TournamentID: 7}, nil},
		{"scrim plan", PaymentRequest{PaymentType: PaymentTypeScrimPlan, Amount: rupees, TournamentID: 9}, nil},
		{"entry fee", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: rupees, RegistrationID: 42}, nil},
		{"entry fee with redirect", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: rupees, RegistrationID: 42, RedirectURL: "https://app.scrimhub.gg/payment/callback"}, nil},
		{"plan without tournament", PaymentRequest{PaymentType: PaymentTypeTournamentPlan, Amount: rupees}, []string{"tournament_id"}},
		{"plan with registration", PaymentRequest{PaymentType: PaymentTypeScrimPlan, Amount: rupees, TournamentID: 9, RegistrationID: 42}, []string{"registration_id"}},
		{"entry fee without registration", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: rupees}, []string{"registration_id"}},
		{"entry fee with tournament", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: rupees, RegistrationID: 42, TournamentID: 7}, []string{"tournament_id"}},
		{"unknown type", PaymentRequest{PaymentType: "donation", Amount: rupees, TournamentID: 7}, []string{"payment_type"}},
		{"zero amount", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: money.New(0, money.INR), RegistrationID: 42}, []string{"amount"}},
		{"negative amount", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: money.New(-100, money.INR), RegistrationID: 42}, []string{"amount"}},
		{"foreign currency", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: money.New(100, "USD"), RegistrationID: 42}, []string{"amount"}},
		{"relative redirect", PaymentRequest{PaymentType: PaymentTypeEntryFee, Amount: rupees, RegistrationID: 42, RedirectURL: "/payment/callback"}, []string{"redirect_url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"tournament_id": "This field is required",
		"amount":        "Must be a positive amount",
	}}
	assert.Equal(t, "invalid payment request: amount: Must be a positive amount; tournament_id: This field is required", err.Error())
}

func TestOutcome_Message(t *testing.T) {
	assert.Equal(t, "Payment successful", Outcome{Kind: OutcomeSucceeded}.Message())
	assert.Equal(t, "Payment cancelled", Outcome{Kind: OutcomeCancelled}.Message())
	assert.Equal(t, "Payment failed", Outcome{Kind: OutcomeFailed, Err: ErrPaymentFailed}.Message())
	assert.Equal(t, "Payment failed: payments api error: status=500", Outcome{Kind: OutcomeFailed, Err: &APIError{StatusCode: 500}}.Message())
}
