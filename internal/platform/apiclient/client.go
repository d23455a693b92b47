// Package apiclient provides a small JSON-over-HTTP client for the external
// auth and principal services.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/warden-auth/warden/internal/shared"
)

// Client wraps outbound calls to one external service. Every request is
// bounded by the configured timeout; failed calls are never retried here.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// New constructs a client. A non-positive timeout falls back to 5s.
func New(baseURL string, timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PostJSON sends body as JSON to baseURL+path and decodes the response into
// out. Transport errors, timeouts and non-2xx statuses are reported as
// *shared.UpstreamError.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("apiclient: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("apiclient: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.UpstreamError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &shared.UpstreamError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &shared.UpstreamError{Err: err}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &shared.UpstreamError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
