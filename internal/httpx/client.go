// Package httpx is the HTTP transport shared by the JSON-RPC and REST
// clients: base URL resolution, authentication, CSRF handling, retries with
// backoff, and client-side rate limiting.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Header and cookie names used by the application server.
const (
	HeaderCSRFToken = "X-CSRFToken"
	HeaderRequestID = "X-Request-ID"
	CookieCSRFToken = "csrftoken"
)

// RetryPolicy controls the retry behaviour for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryPolicy implements a conservative retry strategy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-attempt timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithRetryPolicy overrides the default retry configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithBasicAuth authenticates every request with HTTP basic auth.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithBearerToken authenticates every request with a bearer token. It takes
// precedence over basic auth.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for per-attempt debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client wraps http.Client with base URL, auth, and retry handling.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	timeout     time.Duration
	headers     http.Header
	retryPolicy RetryPolicy
	username    string
	password    string
	token       string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Request describes a single outbound request. Body is replayed verbatim on
// retries.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Idempotent allows retrying POST/PATCH requests. GET, HEAD, PUT,
	// DELETE and OPTIONS are always considered idempotent.
	Idempotent   bool
	DisableRetry bool
}

// NewClient creates a Client for the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpx: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("httpx: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:     parsed,
		timeout:     30 * time.Second,
		headers:     make(http.Header),
		retryPolicy: DefaultRetryPolicy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpx: cookie jar: %w", err)
		}
		c.httpClient = &http.Client{Timeout: c.timeout, Jar: jar}
	}
	if c.retryPolicy.MaxRetries < 0 {
		c.retryPolicy.MaxRetries = 0
	}
	if c.retryPolicy.BaseDelay <= 0 {
		c.retryPolicy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if c.retryPolicy.MaxDelay <= 0 {
		c.retryPolicy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return c, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do executes req and returns the response. Non-2xx responses are returned
// as *HTTPError with the body consumed.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	backoff := NewBackoff(c.retryPolicy.BaseDelay, c.retryPolicy.MaxDelay, c.retryPolicy.Jitter)

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		httpReq, err := c.newHTTPRequest(ctx, req, fullURL, requestID)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.DebugContext(ctx, "http request failed",
				"method", req.Method, "path", req.Path, "request_id", requestID,
				"attempt", attempt, "error", err)
			if !c.shouldRetry(ctx, req, attempt, err) {
				return nil, fmt.Errorf("execute request: %w", err)
			}
			if err := sleep(ctx, backoff.ForAttempt(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		c.logger.DebugContext(ctx, "http request",
			"method", req.Method, "path", req.Path, "status", resp.StatusCode,
			"request_id", requestID, "attempt", attempt, "duration", time.Since(start))

		if resp.StatusCode >= 400 {
			httpErr := c.handleError(req, resp)
			if !c.shouldRetry(ctx, req, attempt, httpErr) {
				return nil, httpErr
			}
			delay := backoff.ForAttempt(attempt)
			if ra := httpErr.RetryAfter(); ra > delay {
				delay = min(ra, c.retryPolicy.MaxDelay)
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
}

// DoJSON sends in (if non-nil) as a JSON body and decodes the response into
// out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, req *Request, in, out any) error {
	if in != nil {
		body, err := MarshalJSON(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Body = body
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	data, err := ReadAllAndClose(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CSRFToken returns the CSRF token cookie currently held for the base URL.
func (c *Client) CSRFToken() string {
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == CookieCSRFToken {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request, fullURL, requestID string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = cloneHeader(c.headers)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	if token := c.CSRFToken(); token != "" {
		httpReq.Header.Set(HeaderCSRFToken, token)
	}
	switch {
	case c.token != "":
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		httpReq.SetBasicAuth(c.username, c.password)
	}
	return httpReq, nil
}

func (c *Client) shouldRetry(ctx context.Context, req *Request, attempt int, err error) bool {
	if req.DisableRetry || attempt >= c.retryPolicy.MaxRetries {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if !req.Idempotent && !idempotentMethod(req.Method) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func idempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("httpx: invalid path %q: %w", path, err)
	}
	full := *c.baseURL
	full.Path = strings.TrimRight(c.baseURL.Path, "/") + ref.Path
	full.RawQuery = ""
	if len(q) > 0 {
		full.RawQuery = q.Encode()
	}
	return full.String(), nil
}

func (c *Client) handleError(req *Request, resp *http.Response) *HTTPError {
	body, _ := ReadAllAndClose(resp.Body)
	httpErr := &HTTPError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		httpErr.JSON = decodeJSONBody(body)
	}
	return httpErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MarshalJSON encodes v without HTML escaping and without a trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func isJSON(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(contentType) == "application/json"
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		dst[k] = append([]string(nil), values...)
	}
	return dst
}
