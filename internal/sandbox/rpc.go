package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"dbadmin/internal/domain"
	"dbadmin/internal/middleware"
	"dbadmin/pkg/rpc"
)

// JSON-RPC error codes. The -30xxx range carries domain errors.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeNotFound       = -30404
	CodeConflict       = -30409
	CodeValidation     = -30422
)

const maxRPCBody = 10 << 20

// MethodFunc handles one JSON-RPC method.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher serves JSON-RPC 2.0 single and batch requests over HTTP POST.
type Dispatcher struct {
	methods map[string]MethodFunc
	logger  *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{methods: map[string]MethodFunc{}, logger: logger}
}

// Register adds a method, replacing any previous handler of that name.
func (d *Dispatcher) Register(name string, fn MethodFunc) {
	d.methods[name] = fn
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.methods))
	for name := range d.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpc.Error      `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBody))
	if err != nil {
		writeRPC(w, errorResponse(nullID, &rpc.Error{Code: CodeParseError, Message: "could not read request body"}))
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			writeRPC(w, errorResponse(nullID, &rpc.Error{Code: CodeParseError, Message: "parse error"}))
			return
		}
		if len(batch) == 0 {
			writeRPC(w, errorResponse(nullID, &rpc.Error{Code: CodeInvalidRequest, Message: "empty batch"}))
			return
		}
		out := make([]rpcResponse, 0, len(batch))
		for _, raw := range batch {
			if resp, ok := d.handle(r.Context(), raw); ok {
				out = append(out, resp)
			}
		}
		if len(out) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeRPC(w, out)
		return
	}

	resp, ok := d.handle(r.Context(), body)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRPC(w, resp)
}

// handle runs one request. ok is false for notifications, which get no
// response.
func (d *Dispatcher) handle(ctx context.Context, raw json.RawMessage) (rpcResponse, bool) {
	var req rpcRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nullID, &rpc.Error{Code: CodeParseError, Message: "parse error"}), true
	}
	id := req.ID
	notification := len(id) == 0
	if notification {
		id = nullID
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(id, &rpc.Error{Code: CodeInvalidRequest, Message: "invalid request"}), true
	}

	fn, ok := d.methods[req.Method]
	if !ok {
		return errorResponse(id, &rpc.Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}), !notification
	}

	start := time.Now()
	result, err := fn(ctx, req.Params)
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", middleware.RequestIDFromContext(ctx)),
	}
	if err != nil {
		rerr := toRPCError(err)
		level := slog.LevelInfo
		if rerr.Code == CodeInternal {
			level = slog.LevelError
		}
		d.logger.LogAttrs(ctx, level, "rpc call failed", append(attrs, slog.Int("code", rerr.Code), slog.String("error", err.Error()))...)
		return errorResponse(id, rerr), !notification
	}
	d.logger.LogAttrs(ctx, slog.LevelDebug, "rpc call", attrs...)

	encoded, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, &rpc.Error{Code: CodeInternal, Message: "could not encode result"}), !notification
	}
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: encoded}, !notification
}

func errorResponse(id json.RawMessage, e *rpc.Error) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: e}
}

// toRPCError maps handler errors onto JSON-RPC error objects.
func toRPCError(err error) *rpc.Error {
	var (
		re *rpc.Error
		nf *domain.NotFoundError
		cf *domain.ConflictError
		ve *domain.ValidationError
	)
	switch {
	case errors.As(err, &re):
		return re
	case errors.As(err, &nf):
		return &rpc.Error{Code: CodeNotFound, Message: nf.Message}
	case errors.As(err, &cf):
		return &rpc.Error{Code: CodeConflict, Message: cf.Message}
	case errors.As(err, &ve):
		return &rpc.Error{Code: CodeValidation, Message: ve.Message}
	default:
		return &rpc.Error{Code: CodeInternal, Message: err.Error()}
	}
}

func invalidParams(msg string) *rpc.Error {
	return &rpc.Error{Code: CodeInvalidParams, Message: msg}
}

func writeRPC(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// validator is implemented by params with required fields.
type validator interface {
	validate() error
}

// method adapts a typed handler. Params are decoded into P and validated
// when P implements validator.
func method[P any](fn func(ctx context.Context, p P) (any, error)) MethodFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) > 0 && !bytes.Equal(raw, nullID) {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, invalidParams("invalid params: " + err.Error())
			}
		}
		if v, ok := any(&p).(validator); ok {
			if err := v.validate(); err != nil {
				return nil, invalidParams(err.Error())
			}
		}
		return fn(ctx, p)
	}
}
