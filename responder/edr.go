// Package responder holds the HTTP clients for the external containment
// surfaces: the EDR platform, the identity provider and the edge firewall.
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

	"github.com/soclab/quell/domain/entity"
)

// EDRClienter is the subset of the EDR API the engine needs: volatile-state
// reads for evidence and the two containment verbs.
type EDRClienter interface {
	ListProcesses(ctx context.Context, host string) ([]entity.HostProcess, error)
	ListConnections(ctx context.Context, host string) ([]entity.HostConnection, error)
	IsolateHost(ctx context.Context, host string) error
	KillProcess(ctx context.Context, host, sha256 string) error
}

type EDRClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewEDRClient(endpoint string, timeout time.Duration) *EDRClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EDRClient{
		endpoint: endpoint,
		token:    os.Getenv("EDR_API_TOKEN"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *EDRClient) ListProcesses(ctx context.Context, host string) ([]entity.HostProcess, error) {
	var processes []entity.HostProcess
	err := c.get(ctx, fmt.Sprintf("/hosts/%s/processes", host), &processes)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes on %s: %w", host, err)
	}
	return processes, nil
}

func (c *EDRClient) ListConnections(ctx context.Context, host string) ([]entity.HostConnection, error) {
	var connections []entity.HostConnection
	err := c.get(ctx, fmt.Sprintf("/hosts/%s/connections", host), &connections)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections on %s: %w", host, err)
	}
	return connections, nil
}

func (c *EDRClient) IsolateHost(ctx context.Context, host string) error {
	return c.post(ctx, fmt.Sprintf("/hosts/%s/isolate", host), nil)
}

func (c *EDRClient) KillProcess(ctx context.Context, host, sha256 string) error {
	return c.post(ctx, fmt.Sprintf("/hosts/%s/kill", host), map[string]string{"sha256": sha256})
}

func (c *EDRClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *EDRClient) post(ctx context.Context, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *EDRClient) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("edr api returned %d: %s", resp.StatusCode, string(body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode edr response: %w", err)
		}
	}
	return nil
}
