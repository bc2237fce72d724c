package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront-service/internal/money"
)

// DefaultBaseURL is the hosted payment provider's API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

// Client is a thin typed wrapper over the payment provider's HTTP API.
// It holds the server-side secret; nothing here is ever exposed to browsers.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a gateway client. baseURL is overridable for tests.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// InitializeRequest is the payload for creating a hosted checkout session.
type InitializeRequest struct {
	Email       string       `json:"email"`
	Amount      money.Amount `json:"amount"`
	Reference   string       `json:"reference"`
	CallbackURL string       `json:"callback_url"`
	Metadata    Metadata     `json:"metadata"`
}

// Metadata echoes order identity back through the gateway for support lookups.
type Metadata struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// InitializeResponse carries the hosted checkout URL on success.
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// VerifyResponse is the provider's view of a transaction. Data.Amount and
// Data.Currency are what reconciliation compares against the stored order.
type VerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       json.Number  `json:"id"`
		Status   string       `json:"status"`
		Amount   money.Amount `json:"amount"`
		Currency string       `json:"currency"`
	} `json:"data"`
}

// Initialize asks the provider to create a hosted checkout session. Returns
// the parsed response plus the raw body for the audit trail. A non-2xx reply
// with a parseable body is returned to the caller as data, not an error, so
// the raw payload can still be persisted.
func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	raw, ok, err := c.do(httpReq)
	if err != nil {
		return nil, raw, err
	}

	var resp InitializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, raw, fmt.Errorf("failed to decode initialize response: %w", err)
	}
	if !ok {
		resp.Status = false
	}
	return &resp, raw, nil
}

// Verify fetches the provider's authoritative view of a transaction by
// reference. Pure read; callers decide what to do with the result.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	raw, ok, err := c.do(httpReq)
	if err != nil {
		return nil, raw, err
	}

	var resp VerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, raw, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if !ok {
		resp.Status = false
	}
	return &resp, raw, nil
}

// do executes the request and returns the raw body plus whether the HTTP
// status was 2xx. Transport failures are errors; application-level failures
// are left for the caller to read out of the payload.
func (c *Client) do(req *http.Request) (json.RawMessage, bool, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read gateway response: %w", err)
	}

	return raw, res.StatusCode >= 200 && res.StatusCode < 300, nil
}
