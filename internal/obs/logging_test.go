package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/obs"
)

func TestRequestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithSessionID(req.Context(), "sess-9")))
		})
	})
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Post("/api/v1/storefront/checkout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/storefront/checkout", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "/api/v1/storefront/checkout", line["route"])
	require.Equal(t, "sess-9", line["session_id"])
	require.EqualValues(t, 422, line["status"])
	require.Equal(t, "http_request", line["message"])
}

func TestRequestLoggerExposesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/unrouted", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))
	require.Equal(t, "inside", inner["message"])
	require.Equal(t, "error", access["level"])
	require.Equal(t, "/unrouted", access["route"])
	require.Equal(t, "192.0.2.1", access["remote_addr"])
}
