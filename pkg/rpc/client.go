package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dbadmin/internal/httpx"
)

// DefaultEndpoint is the RPC path on the application server.
const DefaultEndpoint = "/api/rpc/v0/"

const tracerName = "dbadmin/pkg/rpc"

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the RPC endpoint path.
func WithEndpoint(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.endpoint = path
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// Client sends JSON-RPC requests over an httpx.Client.
type Client struct {
	http     *httpx.Client
	endpoint string
	tracer   trace.Tracer
}

// New creates a Client using h as transport.
func New(h *httpx.Client, opts ...Option) *Client {
	c := &Client{
		http:     h,
		endpoint: DefaultEndpoint,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call runs a single method and decodes its result into a value of type T.
func Call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	return NewRequest[T](method, params).Run(ctx, c)
}

// Call runs a single method and decodes its result into out, which may be
// nil when the result is not needed.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	req := NewRequest[json.RawMessage](method, params)
	raw, err := req.Run(ctx, c)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rpc %s: decode result: %w", method, err)
	}
	return nil
}

// Batch sends all requests in one HTTP round trip and resolves each of them.
// It returns the first error in request order, so callers that only care
// about overall success can ignore the individual results.
func (c *Client) Batch(ctx context.Context, reqs ...Runnable) error {
	if len(reqs) == 0 {
		return nil
	}
	if c == nil || c.http == nil {
		return errors.New("rpc: client is nil")
	}

	spanName := "rpc.call " + reqs[0].Method()
	if len(reqs) > 1 {
		spanName = "rpc.batch"
	}
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	methods := make([]string, len(reqs))
	ids := make([]string, len(reqs))
	envs := make([]envelope, len(reqs))
	idempotent := true
	for i, r := range reqs {
		ids[i] = uuid.NewString()
		methods[i] = r.Method()
		params := r.Params()
		if params == nil {
			params = map[string]any{}
		}
		envs[i] = envelope{JSONRPC: jsonrpcVersion, ID: ids[i], Method: r.Method(), Params: params}
		idempotent = idempotent && isReadMethod(r.Method())
	}
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.StringSlice("rpc.methods", methods),
		attribute.Int("rpc.batch_size", len(reqs)),
	)

	var payload any = envs
	if len(envs) == 1 {
		payload = envs[0]
	}

	raw, err := c.post(ctx, payload, idempotent)
	if err != nil {
		for _, r := range reqs {
			_ = r.resolve(nil, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	byID, err := decodeResponses(raw)
	if err != nil {
		for _, r := range reqs {
			_ = r.resolve(nil, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var firstErr error
	for i, r := range reqs {
		resp, ok := byID[ids[i]]
		if !ok && len(reqs) == 1 && len(byID) == 1 {
			// Parse errors are reported with a null id.
			for _, only := range byID {
				resp, ok = only, true
			}
		}
		var rerr error
		switch {
		case !ok:
			rerr = fmt.Errorf("rpc %s: no response for request", r.Method())
		case resp.Error != nil:
			e := *resp.Error
			e.Method = r.Method()
			rerr = &e
		}
		if rerr = r.resolve(resp.Result, rerr); rerr != nil && firstErr == nil {
			firstErr = rerr
		}
	}
	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
	}
	return firstErr
}

func (c *Client) post(ctx context.Context, payload any, idempotent bool) ([]byte, error) {
	body, err := httpx.MarshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}
	resp, err := c.http.Do(ctx, &httpx.Request{
		Method:     http.MethodPost,
		Path:       c.endpoint,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		Idempotent: idempotent,
	})
	if err != nil {
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc: read response: %w", err)
	}
	return data, nil
}

// decodeResponses accepts either a single response object or an array.
func decodeResponses(raw []byte) (map[string]response, error) {
	var list []response
	if err := json.Unmarshal(raw, &list); err != nil {
		var single response
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("rpc: decode response: %w", err2)
		}
		list = []response{single}
	}
	out := make(map[string]response, len(list))
	for _, r := range list {
		out[r.idString()] = r
	}
	return out, nil
}
