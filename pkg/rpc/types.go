package rpc

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Void is the result type of methods that return nothing useful. It
// accepts any JSON value.
type Void struct{}

// UnmarshalJSON discards the payload.
func (*Void) UnmarshalJSON([]byte) error { return nil }

// Error is a JSON-RPC error object returned by the server.
type Error struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("rpc %s: code %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("rpc: code %d: %s", e.Code, e.Message)
}

// UserMessage returns the server-provided message.
func (e *Error) UserMessage() string { return e.Message }

type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// idString normalises a response id to the string form used in requests.
func (r response) idString() string {
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return string(r.ID)
}
