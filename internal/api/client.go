// ABOUTME: HTTP plumbing shared by every component that talks to the agent server
// ABOUTME: Builds JSON requests, attaches the bearer token, and maps error statuses

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Endpoint paths on the agent server.
const (
	PathSessions = "/api/sessions"
	PathRegister = "/api/auth/register"
	PathLogin    = "/api/auth/login"
	PathMe       = "/api/auth/me"
	PathAgents   = "/api/agents"
)

// SessionPath returns /api/sessions/{id}.
func SessionPath(id string) string {
	return PathSessions + "/" + id
}

// AgentStreamPath returns /api/sessions/{id}/agent/{agent}.
func AgentStreamPath(sessionID, agent string) string {
	return SessionPath(sessionID) + "/agent/" + agent
}

// Client sends requests to one agent server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "api") }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token attached to subsequent requests. An empty
// token disables the Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithoutAuth strips the Authorization header.
func WithoutAuth() RequestOption {
	return func(r *http.Request) { r.Header.Del("Authorization") }
}

// WithBearer overrides the bearer token for a single request.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// WithAccept sets the Accept header.
func WithAccept(mediaType string) RequestOption {
	return func(r *http.Request) { r.Header.Set("Accept", mediaType) }
}

// NewRequest builds a request for path. A non-nil body is encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// Do sends req. The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, err
	}
	c.logger.Debug("request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
	)
	return resp, nil
}

// DoJSON sends a JSON request and decodes a JSON response into out (when non-nil).
// Non-2xx responses are returned as *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	req, err := c.NewRequest(ctx, method, path, in, opts...)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return ReadStatusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// IsSuccess reports whether code is 2xx.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
