// Package rest provides JSON helpers for the REST endpoints under
// /api/db/v0/.
package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dbadmin/internal/httpx"
)

// DefaultPrefix is the path prefix of the REST API.
const DefaultPrefix = "/api/db/v0"

// PaginatedResponse is the envelope of REST list endpoints.
type PaginatedResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// Page holds limit/offset pagination parameters.
type Page struct {
	Limit  int
	Offset int
}

// Query encodes the page as query parameters. Zero values are omitted.
func (p Page) Query() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// Client issues REST requests through an httpx.Client.
type Client struct {
	http   *httpx.Client
	prefix string
}

// New creates a Client. An empty prefix selects DefaultPrefix.
func New(h *httpx.Client, prefix string) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{http: h, prefix: strings.TrimRight(prefix, "/")}
}

// HTTP returns the underlying transport.
func (c *Client) HTTP() *httpx.Client {
	if c == nil {
		return nil
	}
	return c.http
}

// Path joins p onto the REST prefix.
func (c *Client) Path(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.prefix + p
}

// Get fetches path and decodes the response body into a T.
func Get[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	var out T
	err := c.http.DoJSON(ctx, &httpx.Request{Method: http.MethodGet, Path: c.Path(path), Query: q}, nil, &out)
	return out, err
}

// Patch sends body as JSON and decodes the response into a T.
func Patch[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.http.DoJSON(ctx, &httpx.Request{Method: http.MethodPatch, Path: c.Path(path)}, body, &out)
	return out, err
}

// Post sends body as JSON and decodes the response into a T.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.http.DoJSON(ctx, &httpx.Request{Method: http.MethodPost, Path: c.Path(path)}, body, &out)
	return out, err
}

// Delete issues a DELETE request and discards the response body.
func Delete(ctx context.Context, c *Client, path string) error {
	return c.http.DoJSON(ctx, &httpx.Request{Method: http.MethodDelete, Path: c.Path(path)}, nil, nil)
}
