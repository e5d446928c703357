// Package bridge implements the HTTP client for the Hue bridge v1 REST
// API: full-state polling, generic command sends and pairing.
package bridge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is one element of the response array the bridge returns for a
// command. Exactly one of Success or Error is set.
type Result struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}

// Client talks to a single Hue bridge.
type Client struct {
	baseURL    string
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a bridge client. When secure is set, the bridge's
// self-signed certificate is accepted.
func NewClient(host string, port int, user string, secure bool, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	scheme := "http"
	if secure {
		scheme = "https"
		if port == 0 {
			port = 443
		}
	}
	if port == 0 {
		port = 80
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	base := fmt.Sprintf("%s://%s:%d/api", scheme, host, port)
	return &Client{
		baseURL: base,
		apiURL:  fmt.Sprintf("%s/%s", base, user),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) request(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, transportError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return resp, nil
}

// FetchState polls the full state tree from the bridge: a single JSON
// object keyed by namespace (lights, groups, sensors, ...).
func (c *Client) FetchState(ctx context.Context) (map[string]json.RawMessage, error) {
	resp, err := c.request(ctx, http.MethodGet, c.apiURL+"/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, transportError(err)
	}

	// An unauthorized or misconfigured request yields an error array
	// instead of the state object.
	if len(raw) > 0 && raw[0] == '[' {
		var results []Result
		if err := json.Unmarshal(raw, &results); err == nil && len(results) > 0 && results[0].Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrRejected, results[0].Error.Description)
		}
		return nil, fmt.Errorf("%w: unexpected response shape", ErrRejected)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode state payload: %w", err)
	}
	return payload, nil
}

// FetchGroupZero fetches the virtual "all lights" group, which the full
// state poll does not include.
func (c *Client) FetchGroupZero(ctx context.Context) (map[string]any, error) {
	resp, err := c.request(ctx, http.MethodGet, c.apiURL+"/groups/0", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var group map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&group); err != nil {
		return nil, transportError(err)
	}
	return group, nil
}

// Send issues a command to a bridge-relative trigger path such as
// "lights/3/state" and returns the per-field result array.
func (c *Client) Send(ctx context.Context, method, trigger string, body map[string]any) ([]Result, error) {
	trigger = strings.TrimPrefix(trigger, "/")
	if method == "" {
		method = http.MethodPut
	}

	resp, err := c.request(ctx, method, c.apiURL+"/"+trigger, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, transportError(err)
	}

	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: unexpected response %s", ErrRejected, string(raw))
	}

	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("%w: undecodable response %s", ErrRejected, string(raw))
	}
	return results, nil
}

// CreateUser performs the pairing handshake: POST /api with a device
// type, returning the username granted by the bridge. The link button
// must have been pressed.
func (c *Client) CreateUser(ctx context.Context, deviceType string) (string, error) {
	resp, err := c.request(ctx, http.MethodPost, c.baseURL+"/", map[string]any{"devicetype": deviceType})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", transportError(err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrRejected)
	}
	if results[0].Error != nil {
		return "", fmt.Errorf("%w: %s", ErrRejected, results[0].Error.Description)
	}
	if username, ok := results[0].Success["username"].(string); ok {
		return username, nil
	}
	return "", fmt.Errorf("%w: no username in response", ErrRejected)
}

// StateURL returns the polled URL, for logging.
func (c *Client) StateURL() string {
	return c.apiURL + "/"
}
