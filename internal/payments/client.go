package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scrimhub/internal/auth"
	"scrimhub/internal/common/middleware"
)

// ClientConfig configures the payments backend client.
type ClientConfig struct {
	BaseURL string        `envconfig:"SCRIM_API_BASE_URL"`
	Timeout time.Duration `envconfig:"SCRIM_HTTP_TIMEOUT" default:"30s"`
}

// InitiateResponse is the body of a successful initiate call.
type InitiateResponse struct {
	Success         bool   `json:"success"`
	MerchantOrderID string `json:"merchant_order_id"`
	PhonePeOrderID  string `json:"phonepe_order_id"`
	RedirectURL     string `json:"redirect_url"`
	Error           string `json:"error,omitempty"`
}

type initiateBody struct {
	PaymentType    PaymentType `json:"payment_type"`
	Amount         float64     `json:"amount"`
	RedirectURL    string      `json:"redirect_url"`
	TournamentID   int64       `json:"tournament_id,omitempty"`
	RegistrationID int64       `json:"registration_id,omitempty"`
}

type statusBody struct {
	MerchantOrderID string `json:"merchant_order_id"`
}

type listResponse struct {
	Success  bool            `json:"success"`
	Payments []PaymentRecord `json:"payments"`
	Error    string          `json:"error,omitempty"`
}

// envelope is decoded first from every body to detect success=false answers.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the payments REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	logger     *slog.Logger
}

// NewClient creates a backend client. Every request authenticates with a
// token from tokens.
func NewClient(cfg ClientConfig, tokens auth.TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens: tokens,
		logger: logger,
	}
}

// Initiate creates a checkout session. The request must already carry its
// redirect URL.
func (c *Client) Initiate(ctx context.Context, req *PaymentRequest) (*InitiateResponse, error) {
	body := initiateBody{
		PaymentType:    req.PaymentType,
		Amount:         req.Amount.ToMajor(),
		RedirectURL:    req.RedirectURL,
		TournamentID:   req.TournamentID,
		RegistrationID: req.RegistrationID,
	}

	var resp InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/payments/initiate/", body, &resp, nil); err != nil {
		return nil, err
	}
	if resp.MerchantOrderID == "" || resp.RedirectURL == "" {
		return nil, fmt.Errorf("%w: initiate response without merchant_order_id or redirect_url", ErrMalformedResponse)
	}

	c.logger.Info("payment session created",
		"merchant_order_id", resp.MerchantOrderID,
		"phonepe_order_id", resp.PhonePeOrderID,
		"payment_type", req.PaymentType,
	)
	return &resp, nil
}

// Status asks the backend for the current state of an order. The backend
// is the source of truth; it may itself query the gateway.
func (c *Client) Status(ctx context.Context, merchantOrderID string) (*PaymentStatus, error) {
	var raw json.RawMessage
	var status PaymentStatus
	if err := c.do(ctx, http.MethodPost, "/payments/status/", statusBody{MerchantOrderID: merchantOrderID}, &status, &raw); err != nil {
		return nil, err
	}
	status.Status = StatusValue(strings.ToLower(strings.TrimSpace(string(status.Status))))
	if status.Status == "" {
		return nil, fmt.Errorf("%w: status response without status", ErrMalformedResponse)
	}
	if status.MerchantOrderID == "" {
		status.MerchantOrderID = merchantOrderID
	}
	status.Raw = raw
	return &status, nil
}

// List returns the caller's payment history.
func (c *Client) List(ctx context.Context) ([]PaymentRecord, error) {
	return c.records(ctx, "/payments/list/")
}

// Pending returns the caller's payments that have not reached a terminal state.
func (c *Client) Pending(ctx context.Context) ([]PaymentRecord, error) {
	return c.records(ctx, "/payments/pending/")
}

func (c *Client) records(ctx context.Context, path string) ([]PaymentRecord, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.Payments == nil {
		return []PaymentRecord{}, nil
	}
	return resp.Payments, nil
}

// do resolves the credential before building the request, so a missing or
// expired token never reaches the network.
func (c *Client) do(ctx context.Context, method, path string, in, out any, raw *json.RawMessage) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("resolve access token: %w", err)
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if id := middleware.GetCorrelationID(ctx); id != "" {
		httpReq.Header.Set(middleware.CorrelationHeader, id)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return &APIError{StatusCode: httpResp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, decodeErr)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &APIError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	if raw != nil {
		*raw = respBody
	}
	return nil
}

// IsCredentialError reports whether err is a credential failure: a missing or
// expired token, or one the backend rejected with 401. Such errors are never
// retried.
func IsCredentialError(err error) bool {
	if errors.Is(err, auth.ErrMissingCredential) || errors.Is(err, auth.ErrCredentialExpired) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
