// Package client is a small HTTP client for the beacon server API. It
// backs the beaconctl command but works standalone for anything that
// wants to feed or drain an event log over the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumamail/beacon/internal/api"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server, carrying the status
// code and the detail string from the error body when one was present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

// Client talks to one beacon server. An empty API key sends no
// Authorization header, which matches servers running open.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a client for the server at baseURL. A trailing slash on
// the URL is tolerated.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Track records one event. The server queues the append and replies
// before the log hits disk, so a nil error means accepted, not stored.
func (c *Client) Track(ctx context.Context, eventType string, data json.RawMessage) error {
	req := api.TrackRequest{Type: eventType, Data: data}
	return c.do(ctx, http.MethodPost, "/v1/events", req, nil)
}

// Digest asks the server to mail a digest of the current log. Reason
// and user are both optional; empty values take the server defaults.
func (c *Client) Digest(ctx context.Context, reason, user string) (*api.DigestResponse, error) {
	req := api.DigestRequest{Reason: reason, User: user}
	var res api.DigestResponse
	if err := c.do(ctx, http.MethodPost, "/v1/digest", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Clear empties the server's event log.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/events", nil, nil)
}

// Status checks that the server is up. It hits the open health
// endpoint, so it succeeds without an API key.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail api.ErrorResp
		if json.Unmarshal(data, &detail) == nil {
			apiErr.Detail = detail.Detail
		}
		return fmt.Errorf("client: %s %s: %w", method, path, apiErr)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("client: decode response: %w", err)
		}
	}
	return nil
}
