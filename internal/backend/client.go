// Package backend is the HTTP client for the dashboard's backend service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/stockdash/internal/core"
	"go.uber.org/zap"
)

// DefaultBaseURL is where the backend listens in a local setup.
const DefaultBaseURL = "http://localhost:5000"

// Recorder receives per-request outcomes.
type Recorder interface {
	RecordBackendRequest(route, outcome string, seconds float64)
}

// Client talks to the backend over HTTP/JSON. Every call uses the same
// base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	recorder   Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a backend client. An empty baseURL falls back to DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, route string, params url.Values, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.recorder == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.recorder.RecordBackendRequest(route, outcome, time.Since(start).Seconds())
	}()

	u := c.baseURL + route
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			zap.String("method", method),
			zap.String("route", route),
			zap.Error(err),
		)
		return core.WrapError(core.ErrBackendFailed, fmt.Errorf("%s %s: %w", method, route, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("backend returned error status",
			zap.String("method", method),
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
		)
		return core.WrapError(core.ErrBackendStatus,
			fmt.Errorf("%s %s: status %d: %s", method, route, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapError(core.ErrBackendFailed, fmt.Errorf("decoding %s response: %w", route, err))
	}
	return nil
}
