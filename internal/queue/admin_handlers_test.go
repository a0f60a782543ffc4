package queue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/queue"
)

func seedDLQ(t *testing.T, client *redis.Client, key string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		raw, err := json.Marshal(map[string]any{
			"kind":         "checkout-intent",
			"key":          "intent-" + string(rune('a'+i)),
			"payload":      []byte(`{"company":"Acme Oy"}`),
			"attempt":      6,
			"max_attempts": 6,
			"available_at": time.Now().UnixNano(),
			"last_error":   "503 Service Unavailable",
			"failed_at":    time.Now().UnixNano(),
		})
		require.NoError(t, err)
		require.NoError(t, client.LPush(context.Background(), key, raw).Err())
	}
}

func newAdmin(t *testing.T) (*queue.AdminHandler, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &queue.AdminHandler{
		Queue:             queue.Enqueuer{R: client, Prefix: "adm", DedupTTL: time.Minute, MaxAttempts: 5},
		DefaultKind:       "checkout-intent",
		PageSize:          10,
		VisibilityTimeout: 60 * time.Second,
	}, client
}

func TestAdminListDLQ(t *testing.T) {
	handler, client := newAdmin(t)
	seedDLQ(t, client, "adm:checkout-intent:dead", 3)

	rr := httptest.NewRecorder()
	handler.ListDLQ(rr, httptest.NewRequest(http.MethodGet, "/admin/queue/dlq?limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data  []queue.DeadLetter `json:"data"`
		Total int64              `json:"total"`
		Kind  string             `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, int64(3), resp.Total)
	require.Equal(t, "checkout-intent", resp.Kind)
	require.Len(t, resp.Data, 2)
	require.Equal(t, "503 Service Unavailable", resp.Data[0].LastError)

	rr = httptest.NewRecorder()
	handler.ListDLQ(rr, httptest.NewRequest(http.MethodGet, "/admin/queue/dlq?kind=Bad!", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminReplayDLQ(t *testing.T) {
	handler, client := newAdmin(t)
	seedDLQ(t, client, "adm:checkout-intent:dead", 2)

	req := httptest.NewRequest(http.MethodPost, "/admin/queue/dlq/replay", bytes.NewBufferString(`{"kind":"checkout-intent","limit":1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ReplayDLQ(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Replayed int `json:"replayed"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, 1, resp.Replayed)

	depth, err := client.ZCard(context.Background(), "adm:checkout-intent:ready").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	rr = httptest.NewRecorder()
	handler.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/queue/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	require.Equal(t, 1.0, stats["ready"])
	require.Equal(t, 1.0, stats["dlq"])
	require.Equal(t, 60.0, stats["visibility_timeout"])
}

func TestAdminReplayRejectsUnknownFields(t *testing.T) {
	handler, _ := newAdmin(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/queue/dlq/replay", bytes.NewBufferString(`{"ids":["x"]}`))
	rr := httptest.NewRecorder()
	handler.ReplayDLQ(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
