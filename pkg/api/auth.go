package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dbadmin/internal/httpx"
)

// TokenPath is the credential exchange endpoint.
const TokenPath = "/api/auth/token/"

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthAPI exchanges credentials for bearer tokens.
type AuthAPI struct {
	http *httpx.Client
}

// Login exchanges a username and password for a bearer token.
func (a *AuthAPI) Login(ctx context.Context, username, password string) (Token, error) {
	if a.http == nil {
		return Token{}, errors.New("api: no HTTP client configured")
	}
	var out Token
	err := a.http.DoJSON(ctx, &httpx.Request{
		Method:       http.MethodPost,
		Path:         TokenPath,
		DisableRetry: true,
	}, struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}, &out)
	return out, err
}
