// Package checkout hands a payment session to the hosted PhonePe checkout and
// reports how the user left it.
package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// CallbackPath is where the hosted checkout sends the user back to.
const CallbackPath = "/payment/callback"

// Signal is the raw value the checkout widget reports when it closes.
// The set is open; values other than the known ones are rejected.
type Signal string

const (
	SignalUserCancel Signal = "USER_CANCEL"
	SignalConcluded  Signal = "CONCLUDED"
)

var ErrUnrecognizedSignal = errors.New("unrecognized checkout signal")

// ParseSignal maps a raw widget value to a known Signal.
func ParseSignal(v string) (Signal, error) {
	switch s := Signal(strings.ToUpper(strings.TrimSpace(v))); s {
	case SignalUserCancel, SignalConcluded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedSignal, v)
	}
}

// Result is the normalized end of a checkout interaction.
type Result int

const (
	// ResultConcluded means the widget closed without an explicit cancel.
	// It does not mean the payment succeeded.
	ResultConcluded Result = iota + 1
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultConcluded:
		return "concluded"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func resultOf(s Signal) (Result, error) {
	parsed, err := ParseSignal(string(s))
	if err != nil {
		return 0, err
	}
	if parsed == SignalUserCancel {
		return ResultCancelled, nil
	}
	return ResultConcluded, nil
}
