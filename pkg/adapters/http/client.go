package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Client talks to a Server. It is a ports.Store and a ports.DefinitionLoader,
// so a remote service can back a persister or serve definitions directly.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

var (
	_ ports.Store            = (*Client)(nil)
	_ ports.Lister           = (*Client)(nil)
	_ ports.DefinitionLoader = (*Client)(nil)
)

// NewClient creates a Client for baseURL using http.DefaultClient.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	return c.HTTP.Do(req)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// Get fetches the value of key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/snapshot", url.Values{"key": {key}}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read snapshot: %w", err)
		}
		return string(data), nil
	case http.StatusNotFound:
		return "", domain.ErrSnapshotNotFound
	default:
		return "", statusError(resp)
	}
}

// Set uploads value under key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	resp, err := c.do(ctx, http.MethodPut, "/snapshot", url.Values{"key": {key}}, strings.NewReader(value))
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// Remove deletes key remotely.
func (c *Client) Remove(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/snapshot", url.Values{"key": {key}}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// Keys lists the remote keys.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/keys", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("failed to decode key list: %w", err)
	}
	return keys, nil
}

// Load fetches and validates a definition.
func (c *Client) Load(ctx context.Context, flowID, variantID string) (*domain.FlowDefinition, error) {
	var query url.Values
	if variantID != "" {
		query = url.Values{"variant": {variantID}}
	}
	resp, err := c.do(ctx, http.MethodGet, "/flows/"+url.PathEscape(flowID), query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("flow %q variant %q: %w", flowID, variantID, domain.ErrDefinitionNotFound)
	default:
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return definition.ParseJSON(data)
}
