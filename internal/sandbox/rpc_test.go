package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbadmin/internal/domain"
)

type echoParams struct {
	Value string `json:"value"`
}

func (p *echoParams) validate() error {
	if p.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

func newTestDispatcher() *Dispatcher {
	d := NewDispatcher(nil)
	d.Register("echo", method(func(_ context.Context, p echoParams) (any, error) {
		return p.Value, nil
	}))
	d.Register("missing", method(func(context.Context, struct{}) (any, error) {
		return nil, domain.ErrNotFound("thing %d not found", 7)
	}))
	d.Register("boom", method(func(context.Context, struct{}) (any, error) {
		return nil, errors.New("disk on fire")
	}))
	return d
}

func serveRPC(t *testing.T, d *Dispatcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rpc/v0/", strings.NewReader(body)))
	return rec
}

func TestDispatcher_Single(t *testing.T) {
	rec := serveRPC(t, newTestDispatcher(), `{"jsonrpc":"2.0","id":"a","method":"echo","params":{"value":"hi"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"a","result":"hi"}`, rec.Body.String())
}

func TestDispatcher_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"nope"}`, wantCode: CodeMethodNotFound, wantMsg: "method not found: nope"},
		{name: "bad version", body: `{"jsonrpc":"1.0","id":1,"method":"echo"}`, wantCode: CodeInvalidRequest},
		{name: "malformed", body: `{"jsonrpc":`, wantCode: CodeParseError},
		{name: "invalid params type", body: `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"value":3}}`, wantCode: CodeInvalidParams},
		{name: "missing required param", body: `{"jsonrpc":"2.0","id":1,"method":"echo","params":{}}`, wantCode: CodeInvalidParams, wantMsg: "value is required"},
		{name: "domain not found", body: `{"jsonrpc":"2.0","id":1,"method":"missing"}`, wantCode: CodeNotFound, wantMsg: "thing 7 not found"},
		{name: "internal", body: `{"jsonrpc":"2.0","id":1,"method":"boom"}`, wantCode: CodeInternal, wantMsg: "disk on fire"},
		{name: "empty batch", body: `[]`, wantCode: CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveRPC(t, newTestDispatcher(), tt.body)
			var resp rpcResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error.Message)
			}
			assert.Empty(t, resp.Result)
		})
	}
}

func TestDispatcher_BatchKeepsOrderAndSkipsNotifications(t *testing.T) {
	body := `[
		{"jsonrpc":"2.0","id":"1","method":"echo","params":{"value":"one"}},
		{"jsonrpc":"2.0","method":"echo","params":{"value":"note"}},
		{"jsonrpc":"2.0","id":"2","method":"missing"},
		{"jsonrpc":"2.0","id":"3","method":"echo","params":{"value":"three"}}
	]`
	rec := serveRPC(t, newTestDispatcher(), body)

	var resps []rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resps))
	require.Len(t, resps, 3)
	assert.JSONEq(t, `"1"`, string(resps[0].ID))
	assert.JSONEq(t, `"one"`, string(resps[0].Result))
	assert.JSONEq(t, `"2"`, string(resps[1].ID))
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, CodeNotFound, resps[1].Error.Code)
	assert.JSONEq(t, `"three"`, string(resps[2].Result))
}

func TestDispatcher_NotificationOnly(t *testing.T) {
	rec := serveRPC(t, newTestDispatcher(), `{"jsonrpc":"2.0","method":"echo","params":{"value":"x"}}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDispatcher_NullResult(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("void", method(func(context.Context, struct{}) (any, error) { return nil, nil }))
	rec := serveRPC(t, d, `{"jsonrpc":"2.0","id":9,"method":"void","params":null}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":9,"result":null}`, rec.Body.String())
}

func TestDispatcher_Methods(t *testing.T) {
	d := NewDispatcher(nil)
	RegisterMethods(d, nil)
	methods := d.Methods()
	assert.Contains(t, methods, "tables.list_with_metadata")
	assert.Contains(t, methods, "tables.metadata.set")
	assert.Contains(t, methods, "data_modeling.add_mapping_table")
	assert.IsIncreasing(t, methods)
}
