package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"dbadmin/internal/httpx"
	"dbadmin/pkg/rpc"
)

// RPCHandlerFunc answers one JSON-RPC method. Returning an *rpc.Error sends
// that error object; any other error is sent with code -32000.
type RPCHandlerFunc func(params json.RawMessage) (any, error)

// RPCCall is a recorded JSON-RPC call.
type RPCCall struct {
	Method string
	Params json.RawMessage
}

// FakeServer is an httptest server that serves the JSON-RPC endpoint from
// registered handlers. REST routes can be added on Router.
type FakeServer struct {
	*httptest.Server
	Router chi.Router

	mu       sync.Mutex
	handlers map[string]RPCHandlerFunc
	calls    []RPCCall
	batches  int
}

// NewFakeServer starts a FakeServer that is closed when the test ends.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()
	s := &FakeServer{handlers: make(map[string]RPCHandlerFunc)}
	r := chi.NewRouter()
	r.Post(rpc.DefaultEndpoint, s.serveRPC)
	s.Router = r
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Handle registers fn for method.
func (s *FakeServer) Handle(method string, fn RPCHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// HTTPClient returns an httpx.Client pointed at the server with retries
// disabled.
func (s *FakeServer) HTTPClient(t *testing.T) *httpx.Client {
	t.Helper()
	c, err := httpx.NewClient(s.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{MaxRetries: 0, BaseDelay: 1, MaxDelay: 1}))
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}
	return c
}

// Calls returns the recorded calls in arrival order.
func (s *FakeServer) Calls() []RPCCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RPCCall(nil), s.calls...)
}

// CallsTo returns the recorded calls of one method.
func (s *FakeServer) CallsTo(method string) []RPCCall {
	var out []RPCCall
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Batches returns how many HTTP requests carried a JSON array.
func (s *FakeServer) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

type wireCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type wireReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *rpc.Error      `json:"error,omitempty"`
}

func (s *FakeServer) serveRPC(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var calls []wireCall
	batch := len(raw) > 0 && raw[0] == '['
	if batch {
		if err := json.Unmarshal(raw, &calls); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		var one wireCall
		if err := json.Unmarshal(raw, &one); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calls = []wireCall{one}
	}

	replies := make([]wireReply, len(calls))
	for i, c := range calls {
		s.mu.Lock()
		s.calls = append(s.calls, RPCCall{Method: c.Method, Params: c.Params})
		fn := s.handlers[c.Method]
		s.mu.Unlock()

		replies[i] = wireReply{JSONRPC: "2.0", ID: c.ID}
		if fn == nil {
			replies[i].Error = &rpc.Error{Code: -32601, Message: "method not found: " + c.Method}
			continue
		}
		result, err := fn(c.Params)
		if err != nil {
			var rpcErr *rpc.Error
			if !errors.As(err, &rpcErr) {
				rpcErr = &rpc.Error{Code: -32000, Message: err.Error()}
			}
			replies[i].Error = rpcErr
			continue
		}
		replies[i].Result = result
	}

	w.Header().Set("Content-Type", "application/json")
	if batch {
		s.mu.Lock()
		s.batches++
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(replies)
		return
	}
	_ = json.NewEncoder(w).Encode(replies[0])
}

// DecodeParams unmarshals params into a T and fails the test on error.
func DecodeParams[T any](t *testing.T, params json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(params, &out); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	return out
}
