package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Runnable is a request that can take part in a batch.
type Runnable interface {
	Method() string
	Params() any
	resolve(raw json.RawMessage, err error) error
}

// Request is a single typed JSON-RPC call. T is the decoded result type.
type Request[T any] struct {
	method string
	params any

	done   bool
	result T
	err    error
}

// NewRequest builds a request for method with the given keyword params.
func NewRequest[T any](method string, params any) *Request[T] {
	return &Request[T]{method: method, params: params}
}

// Method returns the RPC method name.
func (r *Request[T]) Method() string { return r.method }

// Params returns the request params.
func (r *Request[T]) Params() any { return r.params }

// Run sends the request on its own and returns the decoded result.
func (r *Request[T]) Run(ctx context.Context, c *Client) (T, error) {
	if err := c.Batch(ctx, r); err != nil {
		var zero T
		return zero, err
	}
	return r.result, r.err
}

// Result returns the outcome after the request has been sent.
func (r *Request[T]) Result() (T, error) {
	if !r.done {
		var zero T
		return zero, fmt.Errorf("rpc %s: request has not been sent", r.method)
	}
	return r.result, r.err
}

// resolve records the outcome and returns the request's error, including
// a failure to decode the result into T.
func (r *Request[T]) resolve(raw json.RawMessage, err error) error {
	r.done = true
	if err != nil {
		r.err = err
		return err
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if uerr := json.Unmarshal(raw, &r.result); uerr != nil {
		var zero T
		r.result = zero
		r.err = fmt.Errorf("rpc %s: decode result: %w", r.method, uerr)
	}
	return r.err
}

// readOnlySuffixes mark methods that are safe to retry.
var readOnlySuffixes = []string{
	".list", ".get", ".list_with_metadata", ".get_with_metadata",
	".suggest_types", ".get_import_preview",
}

func isReadMethod(method string) bool {
	for _, s := range readOnlySuffixes {
		if strings.HasSuffix(method, s) {
			return true
		}
	}
	return false
}
