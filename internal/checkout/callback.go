package checkout

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"scrimhub/internal/common/api"
)

// CallbackPayload is the JSON form of a checkout callback.
type CallbackPayload struct {
	Signal string `json:"signal" validate:"omitempty,max=64"`
	Code   string `json:"code" validate:"omitempty,max=64"`
}

// CallbackResult is written back to the caller.
type CallbackResult struct {
	Status string `json:"status"`
	Signal Signal `json:"signal"`
}

const (
	CallbackDelivered = "delivered"
	CallbackResume    = "resume"
)

// CallbackHandler receives the user returning from the hosted checkout.
type CallbackHandler struct {
	widget   *RedirectWidget
	onOrphan func(Signal)
	logger   *slog.Logger
}

// NewCallbackHandler creates a handler delivering to widget. onOrphan, if set,
// is called for callbacks that arrive with no checkout open, such as after a
// restart; the stored session should be resumed.
func NewCallbackHandler(widget *RedirectWidget, onOrphan func(Signal), logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		widget:   widget,
		onOrphan: onOrphan,
		logger:   logger,
	}
}

// Routes returns the callback routes, to be mounted at CallbackPath.
func (h *CallbackHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handle)
	r.Post("/", h.handle)
	return r
}

func (h *CallbackHandler) handle(w http.ResponseWriter, r *http.Request) {
	var payload CallbackPayload
	if isJSON(r) {
		if err := api.DecodeAndValidate(r, &payload); err != nil {
			if api.FieldErrors(err) != nil {
				api.ValidationError(w, err)
				return
			}
			api.BadRequest(w, "invalid json body")
			return
		}
	} else {
		payload.Signal = r.FormValue("signal")
		payload.Code = r.FormValue("code")
	}

	sig := signalFromPayload(payload)
	h.logger.Info("checkout callback received", "signal", sig)

	if h.widget != nil && h.widget.Deliver(sig) {
		api.WriteData(w, http.StatusOK, CallbackResult{Status: CallbackDelivered, Signal: sig})
		return
	}

	h.logger.Info("no checkout open, resuming from stored session")
	if h.onOrphan != nil {
		h.onOrphan(sig)
	}
	api.WriteData(w, http.StatusOK, CallbackResult{Status: CallbackResume, Signal: sig})
}

// signalFromPayload defaults to CONCLUDED. Unknown values are passed through
// so the bridge can reject them.
func signalFromPayload(p CallbackPayload) Signal {
	v := p.Signal
	if v == "" {
		v = p.Code
	}
	v = strings.ToUpper(strings.TrimSpace(v))
	switch v {
	case "":
		return SignalConcluded
	case "PAYMENT_CANCELLED", "CANCELLED":
		return SignalUserCancel
	default:
		return Signal(v)
	}
}

func isJSON(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
