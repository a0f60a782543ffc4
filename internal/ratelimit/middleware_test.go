package ratelimit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareLimitsPerSession(t *testing.T) {
	mr, client := newRedis(t)
	handler := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: client, Prefix: "rl:"},
		Config:  ratelimit.Config{Scope: "checkout", Window: time.Minute, Max: 1},
	}.Middleware(okHandler())

	send := func(session string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/checkout", nil)
		req = req.WithContext(common.WithSessionID(req.Context(), session))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("s1").Code)

	rejected := send("s1")
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	require.Equal(t, "1", rejected.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rejected.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rejected.Header().Get("Retry-After"))
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rejected.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error.Code)
	require.Equal(t, ratelimit.RejectedMessage, body.Error.Message)

	require.Equal(t, http.StatusOK, send("s2").Code)
	require.True(t, mr.Exists("rl:checkout:session:s1"))
}

func TestMiddlewareFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	var reported error
	handler := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: client},
		Config:  ratelimit.Config{Window: time.Second, Max: 1},
		OnError: func(err error) { reported = err },
	}.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Error(t, reported)
}

func TestSessionOrIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	require.Equal(t, "ip:198.51.100.4", ratelimit.SessionOrIP(req))

	req = req.WithContext(common.WithSessionID(req.Context(), "abc"))
	require.Equal(t, "session:abc", ratelimit.SessionOrIP(req))
}
