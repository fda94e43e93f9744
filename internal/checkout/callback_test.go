package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallbackServer(h *CallbackHandler) http.Handler {
	r := chi.NewRouter()
	r.Mount(CallbackPath, h.Routes())
	return r
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) CallbackResult {
	t.Helper()
	var body struct {
		Data CallbackResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

func TestRedirectWidget_EndToEnd(t *testing.T) {
	presented := make(chan string, 1)
	widget := NewRedirectWidget(func(_ context.Context, tokenURL string) error {
		presented <- tokenURL
		return nil
	}, testLogger())
	srv := newCallbackServer(NewCallbackHandler(widget, nil, testLogger()))

	done := make(chan Result, 1)
	go func() {
		res, err := NewBridge(widget, testLogger()).Open(context.Background(), "https://mercury.example/t/xyz")
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case got := <-presented:
		assert.Equal(t, "https://mercury.example/t/xyz", got)
	case <-time.After(timeout):
		t.Fatal("checkout url was never presented")
	}
	require.True(t, widget.Pending())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?code=PAYMENT_CANCELLED", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CallbackResult{Status: CallbackDelivered, Signal: SignalUserCancel}, decodeResult(t, rec))

	assert.Equal(t, ResultCancelled, <-done)
	assert.False(t, widget.Pending())
}

func TestCallbackHandler_OrphanResumes(t *testing.T) {
	widget := NewRedirectWidget(func(context.Context, string) error { return nil }, testLogger())
	var orphaned []Signal
	srv := newCallbackServer(NewCallbackHandler(widget, func(s Signal) { orphaned = append(orphaned, s) }, testLogger()))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CallbackResult{Status: CallbackResume, Signal: SignalConcluded}, decodeResult(t, rec))
	assert.Equal(t, []Signal{SignalConcluded}, orphaned)
}

func TestCallbackHandler_JSONBody(t *testing.T) {
	srv := newCallbackServer(NewCallbackHandler(nil, nil, testLogger()))

	req := httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(`{"signal":"user_cancel"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SignalUserCancel, decodeResult(t, rec).Signal)

	req = httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(`{"signal":`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedirectWidget_OneTransactionAtATime(t *testing.T) {
	widget := NewRedirectWidget(func(context.Context, string) error { return nil }, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, widget.Transact(ctx, TransactOptions{TokenURL: "a", Callback: func(Signal) {}}))
	assert.ErrorIs(t, widget.Transact(context.Background(), TransactOptions{TokenURL: "b", Callback: func(Signal) {}}), ErrCheckoutBusy)

	cancel()
	require.Eventually(t, func() bool { return !widget.Pending() }, timeout, tick)
	assert.False(t, widget.Deliver(SignalConcluded))
}
