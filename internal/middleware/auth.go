package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type principalKey struct{}

// WithPrincipal stores the principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// Credentials is the static login accepted through HTTP basic auth.
type Credentials struct {
	Username string
	Password string
}

// Match compares user and password in constant time.
func (c Credentials) Match(user, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(c.Username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return c.Username != "" && u&p == 1
}

// Auth tries a JWT Bearer token first, then HTTP basic auth. Returns 401 if
// both fail.
func Auth(validator JWTValidator, creds Credentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && validator != nil {
				claims, err := validator.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Subject)))
					return
				}
			}

			if user, pass, ok := r.BasicAuth(); ok && creds.Match(user, pass) {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), user)))
				return
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="dbadmin"`)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized: provide a valid Bearer token or basic auth credentials")
		})
	}
}
