// Package api is the single choke point for calls to the job-search backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobcoach-web/internal/shared/metrics"
	"jobcoach-web/internal/shared/telemetry"
)

// Options customizes a single backend call.
type Options struct {
	Method  string
	Headers map[string]string
	// Body is sent as-is. When nil and JSON is set, JSON is marshaled instead.
	Body io.Reader
	JSON any
	// Discard skips decoding of a successful response body.
	Discard bool
}

// Client issues authenticated requests against a statically configured base URL.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client with the given per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Do sends the request and decodes a successful JSON body into out.
// A non-nil credential is attached as a bearer token. Failures are never retried.
func (c *Client) Do(ctx context.Context, path, credential string, opts *Options, out any) error {
	if opts == nil {
		opts = &Options{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	body := opts.Body
	if body == nil && opts.JSON != nil {
		payload, err := json.Marshal(opts.JSON)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	metrics.IncBackendRequest()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.observeFailure(method, path, 0, start)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observeFailure(method, path, resp.StatusCode, start)
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observeFailure(method, path, resp.StatusCode, start)
		msg := string(raw)
		if msg == "" {
			msg = fallbackErrorMessage
		}
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if err := decode(path, raw, out, opts.Discard); err != nil {
		c.observeFailure(method, path, resp.StatusCode, start)
		return err
	}

	metrics.ObserveBackendDurationMs(metrics.Since(start))
	telemetry.Debug("backend.request", map[string]any{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": metrics.Since(start),
	})
	return nil
}

func decode(path string, raw []byte, out any, discard bool) error {
	if discard {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if out == nil {
		if len(trimmed) == 0 || json.Valid(trimmed) {
			return nil
		}
		return &ParseError{Path: path, Err: fmt.Errorf("body is not JSON")}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

func (c *Client) observeFailure(method, path string, status int, start time.Time) {
	elapsed := metrics.Since(start)
	metrics.IncBackendFailure()
	metrics.ObserveBackendDurationMs(elapsed)
	telemetry.Warn("backend.request.failed", map[string]any{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": elapsed,
	})
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
