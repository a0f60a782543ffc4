package security

import (
	"net/http"
	"strconv"
)

// apiCSP forbids every resource type; responses are JSON only.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// Headers hardens JSON responses. Session-bearing responses are never cached.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Middleware attaches the headers before delegating.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := ""
	if h.EnableHSTS {
		maxAge := h.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = 31536000
		}
		hsts = "max-age=" + strconv.Itoa(maxAge)
		if h.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Content-Security-Policy", apiCSP)
		headers.Set("Cross-Origin-Resource-Policy", "same-site")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		if r.Method != http.MethodGet || r.Header.Get("Cookie") != "" {
			headers.Set("Cache-Control", "no-store")
		}
		if hsts != "" && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
