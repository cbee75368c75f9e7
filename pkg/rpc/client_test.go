package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"dbadmin/internal/domain"
	"dbadmin/internal/httpx"
)

type rpcCall struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcReply struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// newServer answers every call with handle and records the decoded calls.
func newServer(t *testing.T, handle func(rpcCall) rpcReply) (*Client, *[][]rpcCall) {
	t.Helper()
	var seen [][]rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultEndpoint, r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var calls []rpcCall
		batch := len(body) > 0 && body[0] == '['
		if batch {
			require.NoError(t, json.Unmarshal(body, &calls))
		} else {
			var one rpcCall
			require.NoError(t, json.Unmarshal(body, &one))
			calls = []rpcCall{one}
		}
		seen = append(seen, calls)

		replies := make([]rpcReply, 0, len(calls))
		// Reply in reverse order to exercise id correlation.
		for i := len(calls) - 1; i >= 0; i-- {
			rep := handle(calls[i])
			rep.JSONRPC = "2.0"
			rep.ID = calls[i].ID
			replies = append(replies, rep)
		}
		w.Header().Set("Content-Type", "application/json")
		if batch {
			_ = json.NewEncoder(w).Encode(replies)
			return
		}
		_ = json.NewEncoder(w).Encode(replies[0])
	}))
	t.Cleanup(srv.Close)

	h, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)
	return New(h), &seen
}

func TestCall_DecodesResult(t *testing.T) {
	c, seen := newServer(t, func(call rpcCall) rpcReply {
		return rpcReply{Result: []map[string]any{{"oid": 1, "name": "orders", "schema": 2200}}}
	})

	tables, err := Call[[]domain.Table](t.Context(), c, "tables.list", map[string]any{"database_id": 1, "schema_oid": 2200})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)

	require.Len(t, *seen, 1)
	call := (*seen)[0][0]
	assert.Equal(t, "2.0", call.JSONRPC)
	assert.Equal(t, "tables.list", call.Method)
	assert.NotEmpty(t, call.ID)
	assert.JSONEq(t, `{"database_id":1,"schema_oid":2200}`, string(call.Params))
}

func TestCall_NilParamsSendsEmptyObject(t *testing.T) {
	c, seen := newServer(t, func(rpcCall) rpcReply { return rpcReply{Result: []any{}} })

	_, err := Call[[]domain.Database](t.Context(), c, "databases.list", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string((*seen)[0][0].Params))
}

func TestCall_RPCError(t *testing.T) {
	c, _ := newServer(t, func(rpcCall) rpcReply {
		return rpcReply{Error: &Error{Code: -32602, Message: "table name already exists"}}
	})

	_, err := Call[string](t.Context(), c, "tables.patch", map[string]any{})
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "tables.patch", rpcErr.Method)
	assert.Equal(t, "table name already exists", domain.ErrorMessage(err))
}

func TestBatch_CorrelatesByID(t *testing.T) {
	c, seen := newServer(t, func(call rpcCall) rpcReply {
		switch call.Method {
		case "tables.patch":
			return rpcReply{Result: "renamed"}
		case "tables.metadata.set":
			return rpcReply{Result: nil}
		}
		return rpcReply{Error: &Error{Code: -32601, Message: "method not found"}}
	})

	patch := NewRequest[string]("tables.patch", map[string]any{"table_oid": 5})
	meta := NewRequest[Void]("tables.metadata.set", map[string]any{"table_oid": 5})
	require.NoError(t, c.Batch(t.Context(), patch, meta))

	name, err := patch.Result()
	require.NoError(t, err)
	assert.Equal(t, "renamed", name)
	_, err = meta.Result()
	require.NoError(t, err)

	require.Len(t, *seen, 1, "batch must use a single round trip")
	assert.Len(t, (*seen)[0], 2)
}

func TestBatch_ReturnsFirstErrorAndResolvesAll(t *testing.T) {
	c, _ := newServer(t, func(call rpcCall) rpcReply {
		if call.Method == "tables.metadata.set" {
			return rpcReply{Error: &Error{Code: 1, Message: "bad metadata"}}
		}
		return rpcReply{Result: "ok"}
	})

	patch := NewRequest[string]("tables.patch", nil)
	meta := NewRequest[Void]("tables.metadata.set", nil)
	err := c.Batch(t.Context(), patch, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad metadata")

	got, perr := patch.Result()
	require.NoError(t, perr)
	assert.Equal(t, "ok", got)
	_, merr := meta.Result()
	require.Error(t, merr)
}

func TestCall_MalformedResultIsAnError(t *testing.T) {
	c, _ := newServer(t, func(rpcCall) rpcReply { return rpcReply{Result: "not a list"} })

	tables, err := Call[[]domain.Table](t.Context(), c, "tables.list_with_metadata", map[string]any{"database_id": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables.list_with_metadata: decode result")
	assert.Nil(t, tables)
}

func TestBatch_DecodeErrorIsFirstError(t *testing.T) {
	c, _ := newServer(t, func(call rpcCall) rpcReply {
		if call.Method == "tables.get" {
			return rpcReply{Result: []int{1, 2}}
		}
		return rpcReply{Result: "ok"}
	})

	patch := NewRequest[string]("tables.patch", nil)
	get := NewRequest[domain.Table]("tables.get", nil)
	err := c.Batch(t.Context(), patch, get)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc tables.get: decode result")

	got, perr := patch.Result()
	require.NoError(t, perr)
	assert.Equal(t, "ok", got)
	table, gerr := get.Result()
	require.ErrorIs(t, gerr, err)
	assert.Zero(t, table)
}

func TestBatch_Empty(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Batch(t.Context()))
}

func TestRequest_ResultBeforeSend(t *testing.T) {
	r := NewRequest[int]("x.get", nil)
	_, err := r.Result()
	require.Error(t, err)
}

func TestBatch_TransportErrorResolvesEveryRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()
	h, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)
	c := New(h)

	a := NewRequest[string]("tables.get", nil)
	b := NewRequest[string]("tables.list", nil)
	err = c.Batch(t.Context(), a, b)
	require.Error(t, err)

	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)

	_, aerr := a.Result()
	assert.Error(t, aerr)
	_, berr := b.Result()
	assert.Error(t, berr)
}

func TestBatch_ReadMethodsAreRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var call rpcCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		_ = json.NewEncoder(w).Encode(rpcReply{JSONRPC: "2.0", ID: call.ID, Result: []any{}})
	}))
	defer srv.Close()
	h, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1}))
	require.NoError(t, err)

	_, err = Call[[]domain.Schema](t.Context(), New(h), "schemas.list", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBatch_WritesAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	h, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1}))
	require.NoError(t, err)

	_, err = Call[int64](t.Context(), New(h), "tables.add", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSingleErrorWithNullID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)
	}))
	defer srv.Close()
	h, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = Call[string](t.Context(), New(h), "tables.get", nil)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32700, rpcErr.Code)
}

func TestIsReadMethod(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"tables.list", true},
		{"tables.get_with_metadata", true},
		{"data_modeling.suggest_types", true},
		{"tables.get_import_preview", true},
		{"tables.add", false},
		{"tables.metadata.set", false},
		{"schemas.delete", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, isReadMethod(tt.method))
		})
	}
}

func TestClient_CallIntoOut(t *testing.T) {
	c, _ := newServer(t, func(rpcCall) rpcReply { return rpcReply{Result: 42} })

	var oid int64
	require.NoError(t, c.Call(t.Context(), "tables.add", map[string]any{"schema_oid": 2200}, &oid))
	assert.Equal(t, int64(42), oid)
	require.NoError(t, c.Call(t.Context(), "tables.add", nil, nil))
}

func TestBatch_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(t.Context()) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var calls []rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&calls))
		replies := []rpcReply{
			{JSONRPC: "2.0", ID: calls[0].ID, Result: "ok"},
			{JSONRPC: "2.0", ID: calls[1].ID, Error: &Error{Code: 7, Message: "nope"}},
		}
		_ = json.NewEncoder(w).Encode(replies)
	}))
	defer srv.Close()
	h, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)
	c := New(h, WithTracerProvider(tp))

	err = c.Batch(t.Context(), NewRequest[string]("tables.patch", nil), NewRequest[Void]("columns.delete", nil))
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rpc.batch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
