package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Header     http.Header
	JSON       any
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if msg := e.UserMessage(); msg != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return retryableStatus(e.StatusCode)
}

// RetryAfter returns the delay requested by a Retry-After header given in
// seconds, or zero.
func (e *HTTPError) RetryAfter() time.Duration {
	if e == nil || e.Header == nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(e.Header.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// UserMessage extracts the server-provided error message from a JSON body.
// The REST API answers either {"message": ...}, {"detail": ...} or a list
// of {"code": ..., "message": ...} objects.
func (e *HTTPError) UserMessage() string {
	if e == nil || e.JSON == nil {
		return ""
	}
	switch v := e.JSON.(type) {
	case map[string]any:
		for _, key := range []string{"message", "detail", "error"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	case []any:
		msgs := make([]string, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := obj["message"].(string); ok && s != "" {
				msgs = append(msgs, s)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func decodeJSONBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
