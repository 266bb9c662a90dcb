package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type MailerClient struct {
	addr   string
	client *http.Client
}

func NewMailerClient(addr string, client *http.Client) *MailerClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &MailerClient{
		addr:   addr,
		client: client,
	}
}

func (c *MailerClient) SendPaymentConfirmation(ctx context.Context, purchaseID, amount string) error {
	body := map[string]string{
		"purchase_id": purchaseID,
		"amount":      amount,
		"template":    "payment-confirmation",
	}

	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(body); err != nil {
		return fmt.Errorf("encoding confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/messages", &payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending confirmation: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}
