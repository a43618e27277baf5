package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type IdentityClienter interface {
	DisableAccount(ctx context.Context, account string) error
}

type IdentityClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewIdentityClient(endpoint string, timeout time.Duration) *IdentityClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &IdentityClient{
		endpoint: endpoint,
		token:    os.Getenv("IDP_API_TOKEN"),
		client:   &http.Client{Timeout: timeout},
	}
}

// DisableAccount suspends the account at the identity provider. Disabling an
// already disabled account succeeds, so the call is safe to repeat.
func (c *IdentityClient) DisableAccount(ctx context.Context, account string) error {
	body, err := json.Marshal(map[string]string{"account": account, "reason": "security_containment"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/accounts/disable", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("identity api returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
