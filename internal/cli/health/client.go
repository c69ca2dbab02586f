// Package health queries the ndd status API from the CLI.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/ndd/pkg/api/handlers"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 2 * time.Second

// Readiness is the decoded readiness probe.
type Readiness struct {
	Status string                 `json:"status"`
	Data   handlers.ReadinessData `json:"data"`
	Error  string                 `json:"error,omitempty"`
}

// Ready reports whether the server answered healthy.
func (r *Readiness) Ready() bool {
	return r.Status == "healthy"
}

// Client calls the status API of a local server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL
// ("http://localhost:8077").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// LocalURL returns the base URL of an API on localhost.
func LocalURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// Ready calls GET /health/ready. A 503 is not an error: the decoded
// response says why the server is not ready.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	var out Readiness
	if err := c.get(ctx, "/health/ready", &out, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &out, nil
}

// Minors calls GET /api/v1/minors.
func (c *Client) Minors(ctx context.Context) ([]handlers.MinorInfo, error) {
	var out struct {
		Data []handlers.MinorInfo `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/minors", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, v any, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := false
	for _, code := range accept {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: invalid response: %w", path, err)
	}
	return nil
}
