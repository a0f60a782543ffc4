package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hrk/storefront-api/internal/common"
)

// CSRF guards cookie-authenticated storefront writes with the double-submit
// pattern: the token cookie issued with the session must be echoed in a
// header. Requests that carry no session cookie have no ambient credential
// to abuse and pass through.
type CSRF struct {
	Header        string
	SessionCookie string
}

// Middleware enforces the token on unsafe methods.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			reject(w, "missing csrf token")
			return
		}
		cookie, err := r.Cookie(headerName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			reject(w, "missing csrf cookie")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			reject(w, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter, message string) {
	common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", message, nil)
}
