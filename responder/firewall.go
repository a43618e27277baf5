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

type FirewallClienter interface {
	BlockIP(ctx context.Context, ip string) error
	BlockDomain(ctx context.Context, domain string) error
}

type FirewallClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewFirewallClient(endpoint string, timeout time.Duration) *FirewallClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FirewallClient{
		endpoint: endpoint,
		token:    os.Getenv("FIREWALL_API_TOKEN"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *FirewallClient) BlockIP(ctx context.Context, ip string) error {
	return c.block(ctx, "ip", ip)
}

func (c *FirewallClient) BlockDomain(ctx context.Context, domain string) error {
	return c.block(ctx, "domain", domain)
}

// block adds a deny rule. The firewall treats an existing identical rule as
// success, so repeats are safe.
func (c *FirewallClient) block(ctx context.Context, kind, value string) error {
	body, err := json.Marshal(map[string]string{"type": kind, "value": value, "action": "deny"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/rules", bytes.NewReader(body))
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
		return fmt.Errorf("firewall api returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
