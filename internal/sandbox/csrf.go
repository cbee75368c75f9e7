package sandbox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"dbadmin/internal/httpx"
)

func readCSRFCookie(r *http.Request) string {
	c, err := r.Cookie(httpx.CookieCSRFToken)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// ensureCSRFToken issues the csrftoken cookie to clients that lack one.
func (s *Server) ensureCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if readCSRFCookie(r) == "" {
			http.SetCookie(w, &http.Cookie{
				Name:     httpx.CookieCSRFToken,
				Value:    randomToken(32),
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF checks unsafe requests that carry the cookie: the header
// must echo it. Requests without the cookie come from non-browser clients
// and are let through.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		cookie := readCSRFCookie(r)
		if cookie == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get(httpx.HeaderCSRFToken))
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			writeJSON(w, http.StatusForbidden, []restError{{Code: http.StatusForbidden, Message: "CSRF token missing or incorrect."}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
