package project

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Iron-Ham/cockpit/internal/auth"
)

// DefaultRequestTimeout bounds each API request when the caller's context has
// no earlier deadline.
const DefaultRequestTimeout = 15 * time.Second

// Client talks to the project-listing API. All requests carry the bearer
// credential from the injected store; the listing endpoints are idempotent and
// side-effect-free, so they are safe to call for both initial load and manual
// refresh.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials *auth.Store
}

// ServerConfig is the payload of the configuration lookup endpoint. WsURL is
// the advertised endpoint for websocket transports (event channel, terminals).
type ServerConfig struct {
	WsURL string `json:"wsUrl"`
}

// NewClient creates a Client for the API at baseURL (scheme://host[:port]).
func NewClient(baseURL string, credentials *auth.Store) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: DefaultRequestTimeout},
		credentials: credentials,
	}
}

// BaseURL returns the API base URL the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// Projects fetches the full project list.
func (c *Client) Projects(ctx context.Context) ([]*Snapshot, error) {
	var projects []*Snapshot
	if err := c.getJSON(ctx, "/api/projects", &projects); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Config fetches the server's advertised configuration, including the
// websocket endpoint used by terminal transports.
func (c *Client) Config(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return nil, fmt.Errorf("failed to fetch server config: %w", err)
	}
	return &cfg, nil
}

// getJSON issues an authenticated GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if token := c.credentials.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount of the body so the error is debuggable
		// without holding the connection open.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
