package security_test

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/security"
)

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestBodyLimit(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	decoding := security.BodyLimit{Max: 32}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := common.DecodeJSON(r, &p); err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, p)
	}))

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		decoding.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"name":"VanMoof S5"}`)))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "VanMoof S5")
	})

	t.Run("declared oversize", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{}`))
		req.ContentLength = 1 << 20
		rec := httptest.NewRecorder()
		decoding.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, rec))
	})

	t.Run("streamed oversize", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"name":"`+strings.Repeat("x", 64)+`"}`))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		decoding.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		security.BodyLimit{}.Middleware(status(http.StatusOK)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 128))))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCSRF(t *testing.T) {
	handler := security.CSRF{Header: "X-CSRF-Token", SessionCookie: "sf_session"}.Middleware(status(http.StatusOK))

	send := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/cart/items", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sf_session", Value: "s1"})
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "CSRF_REJECTED", errorCode(t, rec))

	rec = send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sf_session", Value: "s1"})
		r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "tok"})
		r.Header.Set("X-CSRF-Token", "other")
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sf_session", Value: "s1"})
		r.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "tok"})
		r.Header.Set("X-CSRF-Token", "tok")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Header-carried sessions have no ambient credential.
	rec = send(func(r *http.Request) {
		r.Header.Set("X-Session-ID", "s1")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	get := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/storefront/session", nil)
	req.AddCookie(&http.Cookie{Name: "sf_session", Value: "s1"})
	handler.ServeHTTP(get, req)
	require.Equal(t, http.StatusOK, get.Code)
}

func TestCSRFWithoutSessionCookieName(t *testing.T) {
	handler := security.CSRF{}.Middleware(status(http.StatusOK))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/storefront/cart", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHeaders(t *testing.T) {
	handler := security.Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(status(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "https://shop.example/api/v1/storefront/checkout", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	headers := rec.Header()
	require.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	require.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	require.Equal(t, "no-store", headers.Get("Cache-Control"))
	require.Equal(t, "max-age=31536000; includeSubDomains", headers.Get("Strict-Transport-Security"))

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "http://shop.example/api/v1/products", nil))
	require.Empty(t, plain.Header().Get("Strict-Transport-Security"))
	require.Empty(t, plain.Header().Get("Cache-Control"))
}

func TestHeadersDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	security.Headers{EnableHSTS: true}.Middleware(status(http.StatusOK)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rec.Header().Get("X-Content-Type-Options"))
}
