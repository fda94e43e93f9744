package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrimhub/internal/auth"
	"scrimhub/internal/common/middleware"
	"scrimhub/internal/common/money"
)

type capturedRequest struct {
	auth          string
	correlationID string
	body          map[string]any
}

func newTestBackend(t *testing.T, routes func(r chi.Router)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			atomic.AddInt32(&hits, 1)
			next.ServeHTTP(w, req)
		})
	})
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(baseURL string, token string) *Client {
	return NewClient(ClientConfig{BaseURL: baseURL + "/", Timeout: 5 * time.Second}, auth.StaticToken(token), testLogger())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClient_Initiate(t *testing.T) {
	var got capturedRequest
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/initiate/", func(w http.ResponseWriter, req *http.Request) {
			got.auth = req.Header.Get("Authorization")
			got.correlationID = req.Header.Get(middleware.CorrelationHeader)
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got.body))
			writeJSON(w, http.StatusOK, `{"success":true,"merchant_order_id":"M1","phonepe_order_id":"OMO1","redirect_url":"https://mercury.example/t/M1"}`)
		})
	})

	ctx := middleware.WithCorrelationID(context.Background(), "corr-9")
	resp, err := newTestClient(srv.URL, "tok-1").Initiate(ctx, &PaymentRequest{
		PaymentType:    PaymentTypeEntryFee,
		Amount:         money.New(49950, money.INR),
		RegistrationID: 42,
		RedirectURL:    "https://app.scrimhub.gg/payment/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "M1", resp.MerchantOrderID)
	assert.Equal(t, "OMO1", resp.PhonePeOrderID)
	assert.Equal(t, "https://mercury.example/t/M1", resp.RedirectURL)

	assert.Equal(t, "Bearer tok-1", got.auth)
	assert.Equal(t, "corr-9", got.correlationID)
	assert.Equal(t, "entry_fee", got.body["payment_type"])
	assert.Equal(t, 499.5, got.body["amount"])
	assert.Equal(t, float64(42), got.body["registration_id"])
	assert.Equal(t, "https://app.scrimhub.gg/payment/callback", got.body["redirect_url"])
	assert.NotContains(t, got.body, "tournament_id")
}

func TestClient_MissingTokenSkipsNetwork(t *testing.T) {
	srv, hits := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/initiate/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `{}`)
		})
	})

	_, err := newTestClient(srv.URL, "").Initiate(context.Background(), &PaymentRequest{PaymentType: PaymentTypeEntryFee})
	assert.ErrorIs(t, err, auth.ErrMissingCredential)
	assert.True(t, IsCredentialError(err))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestClient_UnauthorizedIsCredentialError(t *testing.T) {
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/status/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"token rejected"}`)
		})
	})

	_, err := newTestClient(srv.URL, "tok").Status(context.Background(), "M1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, IsCredentialError(err))
}

func TestClient_Errors(t *testing.T) {
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/initiate/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{"success":false,"error":"gateway unavailable"}`)
		})
		r.Post("/payments/status/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"error":"order not found"}`)
		})
		r.Get("/payments/list/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `<html>`)
		})
	})
	c := newTestClient(srv.URL, "tok")

	_, err := c.Initiate(context.Background(), &PaymentRequest{PaymentType: PaymentTypeEntryFee})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "gateway unavailable", apiErr.Message)

	_, err = c.Status(context.Background(), "M1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "order not found", apiErr.Message)

	_, err = c.List(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_InitiateMissingFields(t *testing.T) {
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/initiate/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"merchant_order_id":"M1"}`)
		})
	})

	_, err := newTestClient(srv.URL, "tok").Initiate(context.Background(), &PaymentRequest{PaymentType: PaymentTypeEntryFee})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Status(t *testing.T) {
	var body map[string]string
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Post("/payments/status/", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			writeJSON(w, http.StatusOK, `{"success":true,"status":"COMPLETED","registration_id":42,"amount":500}`)
		})
	})

	status, err := newTestClient(srv.URL, "tok").Status(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"merchant_order_id": "M1"}, body)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.True(t, status.Status.IsTerminal())
	assert.Equal(t, "M1", status.MerchantOrderID)
	assert.Equal(t, int64(42), status.RegistrationID)
	assert.JSONEq(t, `{"success":true,"status":"COMPLETED","registration_id":42,"amount":500}`, string(status.Raw))
}

func TestClient_ListAndPending(t *testing.T) {
	srv, _ := newTestBackend(t, func(r chi.Router) {
		r.Get("/payments/list/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"payments":[
				{"merchant_order_id":"M1","payment_type":"entry_fee","amount":500,"status":"completed","registration_id":42,"created_at":"2026-03-01T10:00:00Z"},
				{"merchant_order_id":"M2","payment_type":"tournament_plan","amount":1999,"status":"pending","tournament_id":7,"created_at":"2026-03-02T10:00:00Z"}
			]}`)
		})
		r.Get("/payments/pending/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true}`)
		})
	})
	c := newTestClient(srv.URL, "tok")

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, PaymentTypeTournamentPlan, list[1].PaymentType)
	assert.Equal(t, int64(7), list[1].TournamentID)
	assert.Equal(t, StatusPending, list[1].Status)

	pending, err := c.Pending(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, pending)
	assert.Empty(t, pending)
}
