package payments

import (
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"scrimhub/internal/common/api"
	"scrimhub/internal/common/money"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateRequest, PaymentRequest{})
	return v
}

// validateRequest enforces the rules tags cannot express: a plan payment
// never carries a registration, an entry fee never carries a tournament, and
// the amount is a positive rupee value.
func validateRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(PaymentRequest)
	switch {
	case req.PaymentType == PaymentTypeEntryFee && req.TournamentID != 0:
		sl.ReportError(req.TournamentID, "tournament_id", "TournamentID", "excluded_if", "")
	case req.PaymentType.IsPlan() && req.RegistrationID != 0:
		sl.ReportError(req.RegistrationID, "registration_id", "RegistrationID", "excluded_unless", "")
	}

	if req.Amount.Currency != money.INR {
		sl.ReportError(req.Amount, "amount", "Amount", "currency", "")
		return
	}
	if !req.Amount.IsPositive() {
		sl.ReportError(req.Amount, "amount", "Amount", "positive", "")
	}
}

// Validate checks the request shape. It returns a *ValidationError.
func (r *PaymentRequest) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		if fields := api.FieldErrors(err); fields != nil {
			return &ValidationError{Fields: fields}
		}
		return err
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
