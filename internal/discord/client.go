// Package discord is a small REST client for the application endpoints
// wordbot needs: command registration, the interactions endpoint URL and
// the application's verify key.
package discord

import (
	"bytes"
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

// DefaultBaseURL is the platform REST root.
const DefaultBaseURL = "https://discord.com/api/v10"

// maxErrorBody bounds how much of a failed response is kept on APIError.
const maxErrorBody = 4 << 10

// ErrMissingToken is returned by NewClient when no bot token is given.
var ErrMissingToken = errors.New("discord: bot token is required")

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("discord: %s %s: HTTP %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("discord: %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Command is the registration payload for one slash command.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Application is the subset of the application object wordbot reads.
type Application struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	VerifyKey               string `json:"verify_key"`
	InteractionsEndpointURL string `json:"interactions_endpoint_url,omitempty"`
}

// Client talks to the REST API with a bot token.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. an httptest server.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client authenticating as the bot identified by token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		userAgent:  "DiscordBot (https://github.com/mattjoyce/wordbot, 1)",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetCommands overwrites the application's global commands.
func (c *Client) SetCommands(ctx context.Context, applicationID string, commands []Command) error {
	if applicationID == "" {
		return fmt.Errorf("discord: application id is required")
	}
	if commands == nil {
		commands = []Command{}
	}
	path := "/applications/" + url.PathEscape(applicationID) + "/commands"
	return c.do(ctx, http.MethodPut, path, commands, nil)
}

// SetInteractionsEndpointURL points the platform at the webhook URL.
func (c *Client) SetInteractionsEndpointURL(ctx context.Context, endpointURL string) error {
	body := map[string]string{"interactions_endpoint_url": endpointURL}
	return c.do(ctx, http.MethodPatch, "/applications/@me", body, nil)
}

// CurrentApplication fetches the application the token belongs to.
func (c *Client) CurrentApplication(ctx context.Context) (*Application, error) {
	var app Application
	if err := c.do(ctx, http.MethodGet, "/applications/@me", nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("discord: marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("discord: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("discord: decoding %s %s (HTTP %d): %w", method, path, resp.StatusCode, err)
	}
	return nil
}
