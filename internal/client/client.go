// Package client talks to the StudySync API: REST calls under /api/v1,
// object storage under /storage/v1 and the realtime change feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/studysync/pkg/response"
)

// Error is a failure reported by the backend
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is a backend error with the given code
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client is safe for concurrent use
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu        sync.RWMutex
	session   *Session
	listeners map[int]AuthListener
	nextID    int
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    zap.NewNop(),
		listeners: make(map[int]AuthListener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *response.APIError `json:"error"`
	Meta    *response.Meta     `json:"meta"`
}

// apiCall sends a JSON request to /api/v1 and decodes the envelope's data
// into out.
func (c *Client) apiCall(ctx context.Context, method, path string, body, out any) (*response.Meta, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) (*response.Meta, error) {
	req.Header.Set("Accept", "application/json")
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Status: resp.StatusCode, Code: response.CodeInternal, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 || env.Error != nil {
		apiErr := &Error{Status: resp.StatusCode, Code: response.CodeInternal, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		c.logger.Debug("api error", zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode), zap.String("code", apiErr.Code))
		return nil, apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return env.Meta, nil
}
