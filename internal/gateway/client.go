// Package gateway is the single HTTP client through which every Smart Risk
// backend call is made. It attaches the current credential to outgoing
// requests and runs a response-interceptor pipeline after every round-trip,
// which is where authentication failures are detected centrally.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smartrisk/internal/domain"
	"smartrisk/internal/platform/telemetry"
)

const defaultTimeout = 30 * time.Second

// DefaultAuthExempt lists the endpoints whose 401 responses must not tear the
// session down: a failed login is a login failure, not an expired session.
var DefaultAuthExempt = []string{"/login", "/register"}

// ResponseInterceptor runs after every round-trip that produced a response.
// Interceptors observe the request path and response status; they cannot
// alter the response or the error returned to the caller.
type ResponseInterceptor func(path string, status int)

// AuthFailureTeardown returns the stock interceptor: on a 401 response whose
// request path is outside exemptPaths, it invokes teardown. The original
// error still reaches the caller unchanged.
func AuthFailureTeardown(exemptPaths []string, teardown func()) ResponseInterceptor {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return func(path string, status int) {
		if status != http.StatusUnauthorized {
			return
		}
		if _, ok := exempt[path]; ok {
			return
		}
		teardown()
	}
}

// Options configures a Client. Credential is read live on every request, so a
// login occurring after construction is honored on the next call.
type Options struct {
	Credential   func() string
	Timeout      time.Duration
	Logger       *slog.Logger
	Metrics      *telemetry.ConsoleMetrics
	Interceptors []ResponseInterceptor
	HTTPClient   *http.Client
}

// Client dispatches JSON requests to the backend. It holds no session state
// of its own beyond the interceptor wiring.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	credential   func() string
	logger       *slog.Logger
	metrics      *telemetry.ConsoleMetrics
	interceptors []ResponseInterceptor
}

// New creates a Client for the given backend base URL.
func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	credential := opts.Credential
	if credential == nil {
		credential = func() string { return "" }
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		credential:   credential,
		logger:       logger,
		metrics:      opts.Metrics,
		interceptors: opts.Interceptors,
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body and decodes the response into out.
// Both body and out may be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.credential(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordBackendRequest(ctx, method, path, 0, time.Since(start).Seconds())
		}
		c.logger.Warn("backend unreachable", "method", method, "path", path, "error", err)
		return &domain.APIError{Kind: domain.ErrorNetworkUnavailable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrorNetworkUnavailable, Err: err}
	}

	if c.metrics != nil {
		c.metrics.RecordBackendRequest(ctx, method, path, resp.StatusCode, time.Since(start).Seconds())
	}
	for _, intercept := range c.interceptors {
		intercept(path, resp.StatusCode)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decoding response from %s: %w", path, err)
			}
		}
		return nil
	}

	var envelope domain.BackendError
	// A non-JSON error body is tolerated; the status alone classifies it.
	_ = json.Unmarshal(respBody, &envelope)

	return &domain.APIError{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: envelope.Message,
		Fields:  envelope.Errors,
	}
}

func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return domain.ErrorUnauthorized
	case http.StatusForbidden:
		return domain.ErrorForbidden
	case http.StatusUnprocessableEntity:
		return domain.ErrorValidation
	default:
		return domain.ErrorUnknown
	}
}
