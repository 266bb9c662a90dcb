// Package clients holds the engine's outbound HTTP adapters. Each one wraps
// a collaborator owned by another system: the payment gateway, the audit
// log, the notification sender and the redemption notary.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"boxoffice/entity"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

type CheckoutSessionRequest struct {
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type CheckoutSessionStatus struct {
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
	IntentID      string `json:"payment_intent_id"`
}

type GatewayClient struct {
	addr   string
	client *http.Client
}

// NewGatewayClient builds the checkout adapter. Every call is bounded by the
// given timeout; the engine never holds a transaction open across a gateway
// call.
func NewGatewayClient(addr string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		addr: addr,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *GatewayClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, &session); err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

func (c *GatewayClient) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSessionStatus, error) {
	var status CheckoutSessionStatus
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &status); err != nil {
		return CheckoutSessionStatus{}, err
	}

	return status, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, &payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Join(entity.ErrGatewayUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return errors.Join(entity.ErrGatewayUnavailable,
			fmt.Errorf("gateway status code: %d", res.StatusCode))
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
