package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"boxoffice/entity"
)

type AuditClient struct {
	addr   string
	client *http.Client
}

func NewAuditClient(addr string, client *http.Client) *AuditClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &AuditClient{
		addr:   addr,
		client: client,
	}
}

// Append posts one audit record to the audit service. The consumer retries
// on error, so a record is appended at least once.
func (c *AuditClient) Append(ctx context.Context, record entity.AuditRecord) error {
	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(record); err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/audit-records", &payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}
