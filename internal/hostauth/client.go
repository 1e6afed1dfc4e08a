// Package hostauth exchanges a GitHub token for a token issued by the host
// application's authentication endpoint.
package hostauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAuthURI is the path of the host's authentication endpoint.
	DefaultAuthURI = "/api/auth"

	// maxBodySize bounds how much of a response is read.
	maxBodySize = 1 << 20
)

// RemoteAuthError reports a non-success response from the host. Body holds
// the raw response text for diagnostics.
type RemoteAuthError struct {
	StatusCode int
	Body       string
}

func (e *RemoteAuthError) Error() string {
	return fmt.Sprintf("host authentication failed (status %d): %s", e.StatusCode, e.Body)
}

// ProtocolError reports a success response that does not carry a token.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("host auth protocol error: %s: %v", e.Reason, e.Err)
	}
	return "host auth protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Option configures a Client.
type Option func(*Client)

// WithAuthURI overrides DefaultAuthURI.
func WithAuthURI(uri string) Option {
	return func(c *Client) {
		if uri != "" {
			c.authURI = uri
		}
	}
}

// WithHTTPClient sets the HTTP client used for the exchange.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client posts GitHub tokens to the host's authentication endpoint.
type Client struct {
	host       string
	authURI    string
	httpClient *http.Client
}

// New creates a Client for the host base URL.
func New(host string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(host); err != nil {
		return nil, fmt.Errorf("invalid host URL: %w", err)
	}

	c := &Client{
		host:    host,
		authURI: DefaultAuthURI,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL the exchange is posted to: the host followed by the
// auth URI verbatim, so a query string in the URI is preserved.
func (c *Client) Endpoint() (string, error) {
	endpoint := strings.TrimSuffix(c.host, "/") + c.authURI
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", err
	}
	return endpoint, nil
}

// tokenResponse is the body of a successful exchange.
type tokenResponse struct {
	Token string `json:"token"`
}

// Exchange presents githubToken to the host and returns the token it issues.
// Status 200 and 202 are success; any other status is a RemoteAuthError.
func (c *Client) Exchange(ctx context.Context, githubToken string) (string, error) {
	endpoint, err := c.Endpoint()
	if err != nil {
		return "", fmt.Errorf("building auth endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", githubToken)
	req.Header.Set("Accept", "application/json")

	slog.DebugContext(ctx, "requesting host token", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting to %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	slog.DebugContext(ctx, "host responded", "endpoint", endpoint, "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	default:
		return "", &RemoteAuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProtocolError{Reason: "invalid JSON body", Err: err}
	}
	if parsed.Token == "" {
		return "", &ProtocolError{Reason: `response has no "token" field`}
	}
	// Tokens are cached as a single line
	if strings.ContainsAny(parsed.Token, "\r\n") {
		return "", &ProtocolError{Reason: "token contains a line break"}
	}

	return parsed.Token, nil
}
