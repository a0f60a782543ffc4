package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/health"
)

func ok(context.Context) error { return nil }

func decode(t *testing.T, rr *httptest.ResponseRecorder) health.Report {
	t.Helper()
	var report health.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	return report
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", decode(t, rr).Status)
}

func TestReady(t *testing.T) {
	handler := health.Handler{Probes: map[string]health.Probe{
		"redis": ok,
		"queue": ok,
	}}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, health.Report{Status: "ok", Checks: map[string]string{"redis": "ok", "queue": "ok"}}, decode(t, rr))
}

func TestReadyDegraded(t *testing.T) {
	handler := health.Handler{
		Probes: map[string]health.Probe{
			"redis": func(context.Context) error { return errors.New("redis down") },
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			"queue": ok,
		},
		Timeout: 20 * time.Millisecond,
	}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	report := decode(t, rr)
	require.Equal(t, "degraded", report.Status)
	require.Equal(t, "redis down", report.Checks["redis"])
	require.Equal(t, context.DeadlineExceeded.Error(), report.Checks["slow"])
	require.Equal(t, "ok", report.Checks["queue"])
}

func TestReadyWithoutProbes(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReadinessDrainsOnShutdown(t *testing.T) {
	handler := health.Handler{Probes: map[string]health.Probe{"redis": ok}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })
	rr := httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "draining", decode(t, rr).Status)

	health.SetReady(true)
	rr = httptest.NewRecorder()
	handler.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRedisProbe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, health.RedisProbe(client)(context.Background()))
	require.Error(t, health.RedisProbe(nil)(context.Background()))
}
