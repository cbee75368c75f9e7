package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(t *testing.T) (http.Handler, *HS256Validator, *string) {
	t.Helper()
	v, err := NewHS256Validator("secret")
	require.NoError(t, err)

	var principal string
	h := Auth(v, Credentials{Username: "admin", Password: "pw"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, v, &principal
}

func TestAuth(t *testing.T) {
	h, v, principal := newAuthHandler(t)
	token, _, err := v.Issue("token-user", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name          string
		setup         func(r *http.Request)
		wantCode      int
		wantPrincipal string
	}{
		{
			name:          "bearer token",
			setup:         func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantCode:      http.StatusOK,
			wantPrincipal: "token-user",
		},
		{
			name:          "basic auth",
			setup:         func(r *http.Request) { r.SetBasicAuth("admin", "pw") },
			wantCode:      http.StatusOK,
			wantPrincipal: "admin",
		},
		{
			name:     "wrong password",
			setup:    func(r *http.Request) { r.SetBasicAuth("admin", "nope") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid bearer",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "anonymous",
			setup:    func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*principal = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantPrincipal, *principal)
			if tt.wantCode == http.StatusUnauthorized {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Contains(t, body["message"], "unauthorized")
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestCredentials_EmptyUsernameNeverMatches(t *testing.T) {
	assert.False(t, Credentials{}.Match("", ""))
	assert.True(t, Credentials{Username: "a", Password: "b"}.Match("a", "b"))
	assert.False(t, Credentials{Username: "a", Password: "b"}.Match("a", "c"))
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	_, ok := PrincipalFromContext(t.Context())
	assert.False(t, ok)
}
