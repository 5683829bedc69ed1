// Package client is a Go client for the teachmate HTTP API. The chat
// command drives a running server through it.
package client

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

	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/memory"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrRejected is returned when the server answers 400. The error text is
// the server's message.
var ErrRejected = errors.New("request rejected")

const maxBody = 4 << 20

// Client teachmate API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type envelope struct {
	Response json.RawMessage `json:"response"`
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask sends a prompt to /ai and returns the reply text
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	params := url.Values{}
	params.Set("prompt", prompt)

	var reply string
	if err := c.do(ctx, http.MethodGet, "/ai?"+params.Encode(), nil, &reply); err != nil {
		return "", err
	}
	return reply, nil
}

// Teach stores prompt -> response and returns the confirmation
func (c *Client) Teach(ctx context.Context, prompt, response string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt, "response": response})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var reply string
	if err := c.do(ctx, http.MethodPost, "/teach", body, &reply); err != nil {
		return "", err
	}
	return reply, nil
}

// History returns the server's chat history, oldest first
func (c *Client) History(ctx context.Context) ([]history.Entry, error) {
	var entries []history.Entry
	if err := c.do(ctx, http.MethodGet, "/history", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Memory returns the taught memory in insertion order
func (c *Client) Memory(ctx context.Context) ([]memory.Entry, error) {
	m := orderedmap.New[string, string]()
	if err := c.do(ctx, http.MethodGet, "/inspectMemory", nil, m); err != nil {
		return nil, err
	}

	entries := make([]memory.Entry, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, memory.Entry{Prompt: pair.Key, Response: pair.Value})
	}
	return entries, nil
}

// Health reports whether the server is up
func (c *Client) Health(ctx context.Context) error {
	var status string
	return c.do(ctx, http.MethodGet, "/healthz", nil, &status)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&env)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var msg string
		if decodeErr == nil {
			_ = json.Unmarshal(env.Response, &msg)
		}
		if msg == "" {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	case decodeErr != nil:
		return fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
