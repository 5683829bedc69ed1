// Package remote talks to the external completion endpoint:
// GET <base-url><path>?prompt=<escaped prompt> returning {"response": "..."}.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUpstream is returned for transport failures and non-2xx statuses
	ErrUpstream = errors.New("completion endpoint failed")
	// ErrMalformed is returned when the reply has no usable response text
	ErrMalformed = errors.New("completion endpoint returned malformed payload")
)

// DefaultTimeout bounds a single call when none is configured
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a reply is read
const maxBody = 4 << 20

// Client completion endpoint client
type Client struct {
	apiKey     string
	baseURL    string
	path       string
	httpClient *http.Client
}

// completionResponse API response
type completionResponse struct {
	Response *string `json:"response"`
}

// Option configures a Client
type Option func(*Client)

// WithAPIKey sends the key as a bearer token
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithPath overrides the endpoint path (default /llama3)
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = "/" + strings.TrimPrefix(path, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new completion client
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    "/llama3",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends prompt once and returns the reply text. No retries.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	endpoint, err := url.Parse(c.baseURL + c.path)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	params := url.Values{}
	params.Set("prompt", prompt)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return c.handleResponse(io.LimitReader(resp.Body, maxBody))
}

func (c *Client) handleResponse(body io.Reader) (string, error) {
	var payload completionResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrMalformed)
	}
	if strings.TrimSpace(*payload.Response) == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformed)
	}
	return *payload.Response, nil
}
