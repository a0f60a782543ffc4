package obs

import (
	"cmp"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrk/storefront-api/internal/common"
)

// HTTPObs instruments HTTP handlers with metrics.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware counts requests and observes latency per chi route. Requests
// that never matched a route are labelled "unmatched".
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	m := o.Metrics
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)

		route := cmp.Or(RoutePatternFromContext(r.Context()), "unmatched")
		code := strconv.Itoa(cmp.Or(ww.Status(), http.StatusOK))
		m.ReqTotal.WithLabelValues(r.Method, route, code).Inc()
		m.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(began)))
	})
}

// SpanEnricher renames the active server span after the matched route and
// tags it with the storefront session. It runs inside otelhttp's handler,
// which owns the span itself.
func SpanEnricher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		var attrs []attribute.KeyValue
		if route := RoutePatternFromContext(r.Context()); route != "" {
			span.SetName(r.Method + " " + route)
			attrs = append(attrs, attribute.String("http.route", route))
		}
		if id, ok := common.SessionID(r.Context()); ok {
			attrs = append(attrs, attribute.String("storefront.session_id", id))
		}
		span.SetAttributes(attrs...)
	})
}
