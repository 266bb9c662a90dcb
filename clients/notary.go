package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"boxoffice/entity"
)

type NotaryClient struct {
	addr   string
	client *http.Client
}

func NewNotaryClient(addr string, client *http.Client) *NotaryClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &NotaryClient{
		addr:   addr,
		client: client,
	}
}

// NotarizeRedemption records a completed redemption with the external
// notary, which keeps an append-only trail of entries at venue gates.
func (c *NotaryClient) NotarizeRedemption(ctx context.Context, receipt entity.RedemptionReceipt) error {
	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(receipt); err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/redemptions", &payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notarizing redemption: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}
