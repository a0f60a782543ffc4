package obs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/obs"
)

func TestHTTPMetricsUseChiRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("storefront", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Delete("/api/v1/storefront/cart/items/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/storefront/cart/items/VanMoof", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodDelete, "/api/v1/storefront/cart/items/{name}", "204")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
	require.Positive(t, testutil.CollectAndCount(metrics.ReqDur))

	again := obs.NewHTTPMetrics("storefront", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestSpanEnricherNamesSpanAfterRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, span := tp.Tracer("test").Start(req.Context(), "http.request")
			defer span.End()
			ctx = common.WithSessionID(ctx, "sess-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(obs.SpanEnricher)
	r.Get("/api/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/vanmoof-s5", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /api/v1/products/{id}", spans[0].Name())
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "sess-1", attrs["storefront.session_id"])
	require.Equal(t, "/api/v1/products/{id}", attrs["http.route"])
}

func TestRoutePatternOverride(t *testing.T) {
	ctx := obs.WithRoutePattern(context.Background(), "/custom")
	require.Equal(t, "/custom", obs.RoutePatternFromContext(ctx))
	require.Empty(t, obs.RoutePatternFromContext(context.Background()))
}
